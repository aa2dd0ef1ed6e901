// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package stacktrace

import (
	"runtime"
	"strings"
)

const defaultMaxDepth = 256

// Callers returns the stack of the calling goroutine, innermost first.
// Callers(0) starts at the caller of Callers, Callers(1) at its caller, and
// so on. The innermost returned frame is flagged as a call boundary.
func Callers(skip int) []Frame {
	frames := callers(skip + 1)
	if len(frames) > 0 {
		frames[0].CallBoundary = true
	}
	return frames
}

// PanicStack returns the stack of the panicking goroutine when called from a
// deferred function during a panic. Frames of the deferred functions and of
// the runtime panic machinery are removed so that the first frame is the one
// which panicked. Outside of a panic the stack starts at the caller of the
// function calling PanicStack.
func PanicStack() []Frame {
	frames := callers(1)
	cut := -1
	for i, f := range frames {
		if f.Function == "runtime.gopanic" {
			cut = i
		}
	}
	if cut < 0 {
		if len(frames) > 0 {
			frames = frames[1:]
		}
		return frames
	}
	frames = frames[cut+1:]
	for len(frames) > 0 && isPanicHelper(frames[0].Function) {
		frames = frames[1:]
	}
	return frames
}

func isPanicHelper(fn string) bool {
	return fn == "runtime.sigpanic" ||
		strings.HasPrefix(fn, "runtime.goPanic") ||
		strings.HasPrefix(fn, "runtime.panic")
}

// callers resolves the stack of the calling goroutine. callers(0) starts at
// the caller of callers.
func callers(skip int) []Frame {
	pcs := make([]uintptr, 64)
	var n int
	for {
		// +2 skips runtime.Callers and callers itself.
		n = runtime.Callers(skip+2, pcs)
		if n < len(pcs) || len(pcs) >= defaultMaxDepth {
			break
		}
		pcs = make([]uintptr, 2*len(pcs))
	}
	it := runtime.CallersFrames(pcs[:n])
	frames := make([]Frame, 0, n)
	for {
		frame, more := it.Next()
		if frame.Function == "" && frame.File == "" {
			if !more {
				break
			}
			continue
		}
		f := Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		}
		if frame.Func != nil {
			_, f.EntryLine = frame.Func.FileLine(frame.Entry)
		}
		frames = append(frames, f)
		if !more {
			break
		}
	}
	return frames
}
