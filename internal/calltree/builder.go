// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package calltree

import "github.com/DataDog/dd-calltree-go/internal/stacktrace"

// Build turns one stack snapshot, innermost frame first, into a linear tree
// going from the synthetic root down to the innermost application frame.
// Frames excluded by f are dropped. A snapshot without application frames
// yields a root without children.
func Build(frames []stacktrace.Frame, f *stacktrace.Filter) *Tree {
	t := newTree()
	parent := RootID
	for i := len(frames) - 1; i >= 0; i-- {
		fr := &frames[i]
		if f.IsExcluded(fr.File) {
			continue
		}
		n := Node{
			Name:    fr.Function,
			File:    fr.File,
			Line:    fr.EntryLine,
			Samples: 1,
		}
		if n.Line == 0 {
			n.Line = fr.Line
		}
		if fr.CallBoundary {
			n.Calls = 1
		}
		parent = t.appendChild(parent, n)
	}
	return t
}
