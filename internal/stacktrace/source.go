// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

// Package stacktrace reads goroutine stacks, classifies their frames as
// application or library code and turns panics into structured events.
package stacktrace

// Frame is one raw stack frame.
type Frame struct {
	// Function is the fully qualified function name, e.g. "main.(*T).Run".
	Function string
	// File is the absolute (or trimmed) path of the source file.
	File string
	// Line is the line being executed in this frame.
	Line int
	// EntryLine is the first line of the function, 0 if unknown.
	EntryLine int
	// CallBoundary is set when the frame was entered since the previous
	// observation of the same goroutine.
	CallBoundary bool
	// Locals holds variable bindings attached to the frame, if any.
	Locals map[string]any
}

// Snapshot is one observation of a single goroutine's stack. Frames are
// ordered innermost first.
type Snapshot struct {
	GoroutineID int
	Frames      []Frame
}

// Source yields the current stacks of the goroutines it observes.
type Source interface {
	Snapshot() ([]Snapshot, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() ([]Snapshot, error)

// Snapshot implements Source.
func (f SourceFunc) Snapshot() ([]Snapshot, error) { return f() }
