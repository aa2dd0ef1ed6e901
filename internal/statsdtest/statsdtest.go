// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package statsdtest provides an in-memory statsd client for tests.
package statsdtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestStatsdClient records every metric submitted to it. It implements the
// Count, Gauge and Timing methods of a dogstatsd client.
type TestStatsdClient struct {
	mu     sync.RWMutex
	calls  []TestStatsdCall
	counts map[string]int64
}

// TestStatsdCall is one recorded metric submission.
type TestStatsdCall struct {
	name  string
	value float64
	tags  []string
}

// Name returns the metric name.
func (c TestStatsdCall) Name() string { return c.name }

// Tags returns the tags the metric was submitted with.
func (c TestStatsdCall) Tags() []string { return c.tags }

// FloatVal returns the submitted value. Durations are reported in seconds.
func (c TestStatsdCall) FloatVal() float64 { return c.value }

func (tg *TestStatsdClient) Gauge(name string, value float64, tags []string, _ float64) error {
	tg.record(name, value, tags)
	return nil
}

func (tg *TestStatsdClient) Count(name string, value int64, tags []string, _ float64) error {
	tg.mu.Lock()
	if tg.counts == nil {
		tg.counts = make(map[string]int64)
	}
	tg.counts[name] += value
	tg.mu.Unlock()
	tg.record(name, float64(value), tags)
	return nil
}

func (tg *TestStatsdClient) Timing(name string, value time.Duration, tags []string, _ float64) error {
	tg.record(name, value.Seconds(), tags)
	return nil
}

func (tg *TestStatsdClient) record(name string, value float64, tags []string) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.calls = append(tg.calls, TestStatsdCall{
		name:  name,
		value: value,
		tags:  append([]string(nil), tags...),
	})
}

// GetCallsByName returns every recorded call with the given metric name, in
// submission order.
func (tg *TestStatsdClient) GetCallsByName(name string) (calls []TestStatsdCall) {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	for _, c := range tg.calls {
		if c.name == name {
			calls = append(calls, c)
		}
	}
	return calls
}

// Counts returns the summed value of every count metric by name.
func (tg *TestStatsdClient) Counts() map[string]int64 {
	tg.mu.RLock()
	defer tg.mu.RUnlock()
	c := make(map[string]int64, len(tg.counts))
	for key, value := range tg.counts {
		c[key] = value
	}
	return c
}

// Wait blocks until n metrics named name have been reported or until
// duration d passes.
func (tg *TestStatsdClient) Wait(asserts *assert.Assertions, name string, n int, d time.Duration) error {
	c := func() bool {
		return len(tg.GetCallsByName(name)) >= n
	}
	if !asserts.Eventually(c, d, time.Millisecond) {
		return fmt.Errorf("timed out after waiting %s for %d %s metrics", d, n, name)
	}
	return nil
}
