// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package profiler

import (
	"context"
	"io"

	"github.com/DataDog/dd-calltree-go/internal/transport"
)

// Kind identifies what a payload contains.
type Kind = transport.Kind

const (
	// KindMonitoring payloads are aggregated call trees.
	KindMonitoring = transport.KindMonitoring
	// KindEvent payloads describe a panic.
	KindEvent = transport.KindEvent
	// KindMetrics payloads are host metrics readings.
	KindMetrics = transport.KindMetrics
	// KindDatapoint payloads are user data given to (*Profiler).Send.
	KindDatapoint = transport.KindDatapoint
)

// Publisher delivers payloads to a collector. Produce must be safe for
// concurrent use. Errors are logged and the payload is dropped.
type Publisher interface {
	Produce(ctx context.Context, payload any, kind Kind) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, payload any, kind Kind) error

// Produce implements Publisher.
func (f PublisherFunc) Produce(ctx context.Context, payload any, kind Kind) error {
	return f(ctx, payload, kind)
}

// newPublisher returns the configured publisher. The returned closer is nil
// unless the publisher was created here.
func newPublisher(cfg *config) (Publisher, io.Closer, error) {
	if cfg.publisher != nil {
		return cfg.publisher, nil, nil
	}
	if len(cfg.kafkaBrokers) > 0 {
		k, err := transport.NewKafka(cfg.kafkaBrokers, cfg.application)
		if err != nil {
			return nil, nil, err
		}
		return k, k, nil
	}
	h, err := transport.NewHTTP(cfg.url,
		transport.WithClient(cfg.httpClient),
		transport.WithAPIKey(cfg.apiKey),
		transport.WithCompression(cfg.compression),
	)
	if err != nil {
		return nil, nil, err
	}
	return h, h, nil
}
