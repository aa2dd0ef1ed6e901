// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package profiler

import (
	"context"

	"github.com/DataDog/dd-calltree-go/internal/log"
	"github.com/DataDog/dd-calltree-go/internal/stacktrace"
)

// WithLocals attaches variable bindings to err. When err is used as a panic
// value, the bindings are reported on the innermost application frame of
// the event. It returns nil if err is nil.
func WithLocals(err error, locals map[string]any) error {
	return stacktrace.WithLocals(err, locals)
}

// Recover reports a panic which is unwinding the current goroutine as an
// event and then panics again with the same value. It must be deferred
// directly:
//
//	defer p.Recover()
//
// It does nothing when the goroutine is not panicking. Only the first panic
// reaching p is reported, so an unwind passing through nested deferred
// Recover calls produces a single event.
func (p *Profiler) Recover() {
	v := recover()
	if v == nil {
		return
	}
	p.reportPanic(v)
	panic(v)
}

// Recover reports a panic with the global profiler. See (*Profiler).Recover.
func Recover() {
	v := recover()
	if v == nil {
		return
	}
	Active().reportPanic(v)
	panic(v)
}

// Go runs fn in a new goroutine whose panics are reported before they crash
// the process.
func (p *Profiler) Go(fn func()) {
	go func() {
		defer p.Recover()
		fn()
	}()
}

// reportPanic publishes the event for the panic value v. It is called from
// the deferred function of a panicking goroutine.
func (p *Profiler) reportPanic(v any) {
	if p == nil || !p.panicked.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic while reporting a panic: %v", r)
		}
	}()
	ev := stacktrace.NewEvent(v, stacktrace.PanicStack(), p.cfg.filter)
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.eventTimeout)
	defer cancel()
	if err := p.pub.Produce(ctx, ev, KindEvent); err != nil {
		log.Error("Failed to produce event: %v", err)
		p.cfg.statsd.Count("calltree.produce_error", 1, p.kindTags(KindEvent), 1)
		return
	}
	p.cfg.statsd.Count("calltree.event", 1, p.cfg.tags, 1)
}
