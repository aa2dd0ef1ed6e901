// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package internal

import (
	"net"
	"os"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

const (
	defaultAgentHost     = "localhost"
	defaultDogstatsdPort = "8125"
)

// StatsdClient is the subset of the dogstatsd client used by the profiler.
type StatsdClient interface {
	Count(name string, value int64, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
	Flush() error
	Close() error
}

var _ StatsdClient = (*statsd.Client)(nil)
var _ StatsdClient = (*statsd.NoOpClient)(nil)

// StatsdAddr returns the dogstatsd address configured through DD_AGENT_HOST and
// DD_DOGSTATSD_PORT.
func StatsdAddr() string {
	host, port := defaultAgentHost, defaultDogstatsdPort
	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		host = v
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		port = v
	}
	return net.JoinHostPort(host, port)
}

// NewStatsdClient returns a buffered dogstatsd client reporting to addr with the
// given global tags.
func NewStatsdClient(addr string, globalTags []string) (StatsdClient, error) {
	return statsd.New(addr,
		statsd.WithMaxMessagesPerPayload(40),
		statsd.WithTags(globalTags),
		statsd.WithoutTelemetry(),
	)
}
