// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DataDog/dd-calltree-go/internal/version"
)

const (
	headerKind    = "calltree-kind"
	headerVersion = "calltree-version"
)

var defaultTopics = map[Kind]string{
	KindMonitoring: "go.profiler",
	KindEvent:      "go.events",
	KindMetrics:    "go.metrics",
	KindDatapoint:  "go.datapoints",
}

// messageWriter is the subset of *kafka.Writer used by Kafka.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka produces JSON payloads to one topic per kind, keyed by application.
type Kafka struct {
	w      messageWriter
	key    []byte
	topics map[Kind]string
}

// KafkaOption configures a Kafka transport.
type KafkaOption func(*Kafka)

// WithTopic overrides the topic payloads of kind are written to.
func WithTopic(kind Kind, topic string) KafkaOption {
	return func(k *Kafka) {
		k.topics[kind] = topic
	}
}

// NewKafka returns a transport writing to the given brokers. Messages are
// keyed by application so that all payloads of a process land on the same
// partition.
func NewKafka(brokers []string, application string, opts ...KafkaOption) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Lz4,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: defaultHTTPTimeout,
		MaxAttempts:  defaultMaxAttempts,
	}
	return newKafka(w, application, opts...), nil
}

func newKafka(w messageWriter, application string, opts ...KafkaOption) *Kafka {
	k := &Kafka{
		w:      w,
		key:    []byte(application),
		topics: make(map[Kind]string, len(defaultTopics)),
	}
	for kind, topic := range defaultTopics {
		k.topics[kind] = topic
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Produce writes payload to the topic of kind and waits for the broker to
// acknowledge it.
func (k *Kafka) Produce(ctx context.Context, payload any, kind Kind) error {
	topic, ok := k.topics[kind]
	if !ok {
		return unsupported(kind)
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   k.key,
		Value: value,
		Headers: []kafka.Header{
			{Key: headerKind, Value: []byte(kind)},
			{Key: headerVersion, Value: []byte(version.Tag)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s payload to topic %s: %w", kind, topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the connections to the brokers.
func (k *Kafka) Close() error {
	return k.w.Close()
}
