// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package profiler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/dd-calltree-go/internal/statsdtest"
	"github.com/DataDog/dd-calltree-go/internal/stacktrace"
)

func TestRecover(t *testing.T) {
	t.Run("locals", func(t *testing.T) {
		rec := &recorder{}
		sd := &statsdtest.TestStatsdClient{}
		p := newTestProfiler(t, rec, WithStatsd(sd))

		var recovered any
		func() {
			defer func() { recovered = recover() }()
			defer p.Recover()
			panic(WithLocals(errors.New("boom"), map[string]any{"user": "alice", "attempt": 3}))
		}()

		require.NotNil(t, recovered)
		assert.EqualError(t, recovered.(error), "boom")
		events := rec.byKind(KindEvent)
		require.Len(t, events, 1)
		ev := events[0].(*stacktrace.Event)
		assert.Equal(t, "*errors.errorString", ev.ExcType)
		require.NotEmpty(t, ev.Trace)
		inner := ev.Trace[len(ev.Trace)-1]
		assert.Contains(t, inner.FunctionName, "TestRecover")
		assert.Equal(t, ev.LineNum, inner.Line)
		assert.Equal(t, map[string]any{"user": "alice", "attempt": int64(3)}, inner.Locals)
		assert.Equal(t, int64(1), sd.Counts()["calltree.event"])
	})

	t.Run("runtime-error", func(t *testing.T) {
		rec := &recorder{}
		p := newTestProfiler(t, rec)
		assert.Panics(t, func() {
			defer p.Recover()
			var s []int
			idx := 5
			_ = s[idx]
		})
		events := rec.byKind(KindEvent)
		require.Len(t, events, 1)
		assert.Equal(t, "runtime.boundsError", events[0].(*stacktrace.Event).ExcType)
	})

	t.Run("not-panicking", func(t *testing.T) {
		rec := &recorder{}
		p := newTestProfiler(t, rec)
		func() {
			defer p.Recover()
		}()
		assert.Empty(t, rec.byKind(KindEvent))
	})

	t.Run("produce-error", func(t *testing.T) {
		sd := &statsdtest.TestStatsdClient{}
		pub := PublisherFunc(func(context.Context, any, Kind) error {
			return errors.New("collector down")
		})
		p := newTestProfiler(t, pub, WithStatsd(sd))
		assert.PanicsWithValue(t, "boom", func() {
			defer p.Recover()
			panic("boom")
		})
		assert.Equal(t, int64(1), sd.Counts()["calltree.produce_error"])
		assert.Zero(t, sd.Counts()["calltree.event"])
	})

	t.Run("timeout", func(t *testing.T) {
		pub := PublisherFunc(func(ctx context.Context, _ any, _ Kind) error {
			<-ctx.Done()
			return ctx.Err()
		})
		p := newTestProfiler(t, pub, WithEventTimeout(10*time.Millisecond))
		start := time.Now()
		assert.Panics(t, func() {
			defer p.Recover()
			panic("boom")
		})
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("nested", func(t *testing.T) {
		rec := &recorder{}
		sd := &statsdtest.TestStatsdClient{}
		p := newTestProfiler(t, rec, WithStatsd(sd))
		assert.PanicsWithValue(t, "boom", func() {
			defer p.Recover()
			func() {
				defer p.Recover()
				panic("boom")
			}()
		})
		assert.Len(t, rec.byKind(KindEvent), 1)
		assert.Equal(t, int64(1), sd.Counts()["calltree.event"])
	})

	t.Run("nested-goroutine", func(t *testing.T) {
		rec := &recorder{}
		p := newTestProfiler(t, rec)
		var (
			wg        sync.WaitGroup
			recovered any
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { recovered = recover() }()
			defer p.Recover()
			func() {
				defer p.Recover()
				panic(WithLocals(errors.New("boom"), map[string]any{"depth": 2}))
			}()
		}()
		wg.Wait()
		assert.EqualError(t, recovered.(error), "boom")
		events := rec.byKind(KindEvent)
		require.Len(t, events, 1)
		ev := events[0].(*stacktrace.Event)
		assert.Equal(t, map[string]any{"depth": int64(2)}, ev.Trace[len(ev.Trace)-1].Locals)
	})

	t.Run("global", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, Start(
			WithApplication("test-app"),
			WithPublicIP("203.0.113.7"),
			WithPublisher(rec),
			WithStackSource(burstSource(0)),
		))
		defer Stop()
		assert.Panics(t, func() {
			defer Recover()
			defer Recover()
			panic("boom")
		})
		assert.Len(t, rec.byKind(KindEvent), 1)
	})

	t.Run("global-none", func(t *testing.T) {
		Stop()
		assert.PanicsWithValue(t, "boom", func() {
			defer Recover()
			panic("boom")
		})
	})
}

func TestGo(t *testing.T) {
	p := newTestProfiler(t, &recorder{})
	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	p.Go(func() {
		defer wg.Done()
		ran = true
	})
	wg.Wait()
	assert.True(t, ran)
}
