// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

// Package transport delivers profiler payloads to a collector over HTTP or
// Kafka.
package transport

import (
	"errors"
	"fmt"
)

// Kind identifies what a payload contains.
type Kind string

const (
	// KindMonitoring is a call tree profile.
	KindMonitoring Kind = "monitoring"
	// KindEvent is a stack trace event for a panic.
	KindEvent Kind = "event"
	// KindMetrics is a system metrics reading.
	KindMetrics Kind = "metrics"
	// KindDatapoint is user provided data.
	KindDatapoint Kind = "datapoint"
)

// ErrUnsupportedKind is returned when a payload kind has no destination.
var ErrUnsupportedKind = errors.New("unsupported payload kind")

func unsupported(kind Kind) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
}
