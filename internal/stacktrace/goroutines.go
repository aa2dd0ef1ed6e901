// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package stacktrace

import (
	"bytes"
	"fmt"
	"runtime"
	"sync"

	"github.com/DataDog/gostackparse"
)

const (
	initialDumpSize = 64 << 10
	maxDumpSize     = 64 << 20
)

// GoroutineSource samples every goroutine of the process through
// runtime.Stack. It remembers the previous stack of each goroutine so that
// frames entered since the last sample are reported as call boundaries.
type GoroutineSource struct {
	mu     sync.Mutex
	buf    []byte
	prev   map[int][]string // goroutine id -> frame keys, outermost first
	primed bool
	// skipCurrent drops the goroutine calling Snapshot from the result.
	skipCurrent bool
}

// NewGoroutineSource returns a source that skips the goroutine calling
// Snapshot, which is usually the sampler itself.
func NewGoroutineSource() *GoroutineSource {
	return &GoroutineSource{
		buf:         make([]byte, initialDumpSize),
		prev:        make(map[int][]string),
		skipCurrent: true,
	}
}

// Snapshot implements Source. The first call establishes a baseline and
// reports no call boundaries. Goroutines first seen by a later call have
// every frame reported as a call boundary.
func (s *GoroutineSource) Snapshot() (snaps []Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// gostackparse should never panic, but a sampler must not take the
	// application down if it ever does.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing goroutine dump: panic: %v", r)
		}
	}()

	goroutines, errs := gostackparse.Parse(bytes.NewReader(s.dump()))
	if len(goroutines) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("parsing goroutine dump: %w", errs[0])
	}
	if s.skipCurrent && len(goroutines) > 0 {
		// runtime.Stack lists the calling goroutine first.
		goroutines = goroutines[1:]
	}

	seen := make(map[int][]string, len(goroutines))
	snaps = make([]Snapshot, 0, len(goroutines))
	for _, g := range goroutines {
		stack := g.Stack
		if g.CreatedBy != nil {
			stack = append(stack, g.CreatedBy)
		}
		keys := make([]string, len(stack))
		for i, f := range stack {
			keys[len(stack)-1-i] = f.Func + "\x00" + f.File
		}
		prev, known := s.prev[g.ID]
		common := 0
		if known {
			common = commonPrefix(prev, keys)
		} else if !s.primed {
			common = len(keys)
		}
		frames := make([]Frame, len(stack))
		for i, f := range stack {
			depth := len(stack) - 1 - i // distance from the outermost frame
			frames[i] = Frame{
				Function:     f.Func,
				File:         f.File,
				Line:         f.Line,
				CallBoundary: depth >= common,
			}
		}
		seen[g.ID] = keys
		snaps = append(snaps, Snapshot{GoroutineID: g.ID, Frames: frames})
	}
	s.prev = seen
	s.primed = true
	return snaps, nil
}

// Reset forgets every previously observed stack.
func (s *GoroutineSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prev = make(map[int][]string)
	s.primed = false
}

// dump returns the text of runtime.Stack for all goroutines, growing the
// buffer until it fits or reaches maxDumpSize.
func (s *GoroutineSource) dump() []byte {
	for {
		n := runtime.Stack(s.buf, true)
		if n < len(s.buf) || len(s.buf) >= maxDumpSize {
			return s.buf[:n]
		}
		s.buf = make([]byte, 2*len(s.buf))
	}
}

func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
