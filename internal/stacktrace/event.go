// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package stacktrace

import "fmt"

// TraceFrame is one application frame of an Event.
type TraceFrame struct {
	FunctionName string `json:"functionName"`
	FilePath     string `json:"filePath"`
	Line         int    `json:"lineNum"`
	// Locals only holds strings, int64 and uint64 values.
	Locals map[string]any `json:"locals"`
}

// Event describes a panic which escaped the application. Trace is ordered
// from the outermost to the innermost frame and only holds application
// frames.
type Event struct {
	Trace   []TraceFrame `json:"stackTrace"`
	ExcType string       `json:"excType"`
	LineNum int          `json:"lineNum"`
}

// NewEvent builds the event for the panic value v raised with the given
// stack, innermost frame first. Frames excluded by f are skipped. Locals
// carried by v are reported on the innermost application frame.
func NewEvent(v any, frames []Frame, f *Filter) *Event {
	e := &Event{
		Trace:   make([]TraceFrame, 0, len(frames)),
		ExcType: excType(v),
	}
	if len(frames) > 0 {
		e.LineNum = frames[0].Line
	}
	carried := LocalsOf(v)
	innermost := -1
	for i := len(frames) - 1; i >= 0; i-- {
		fr := frames[i]
		if f.IsExcluded(fr.File) {
			continue
		}
		e.Trace = append(e.Trace, TraceFrame{
			FunctionName: fr.Function,
			FilePath:     fr.File,
			Line:         fr.Line,
			Locals:       CoerceLocals(fr.Locals),
		})
		innermost = len(e.Trace) - 1
	}
	if innermost >= 0 {
		for k, v := range carried {
			e.Trace[innermost].Locals[k] = CoerceLocal(v)
		}
	}
	return e
}

func excType(v any) string {
	if le, ok := v.(*localsError); ok {
		return fmt.Sprintf("%T", le.err)
	}
	return fmt.Sprintf("%T", v)
}
