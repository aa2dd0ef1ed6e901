// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package stacktrace

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFilter = NewFilter(WithExcludedPrefixes("/usr/local/go/src", "/home/dev/go/pkg/mod"))

// innermost first
var panicFrames = []Frame{
	{Function: "main.parse", File: "/srv/app/parse.go", Line: 40, Locals: map[string]any{"n": 2.5}},
	{Function: "encoding/json.Unmarshal", File: "/usr/local/go/src/encoding/json/decode.go", Line: 100},
	{Function: "main.handle", File: "/srv/app/handle.go", Line: 12},
	{Function: "main.main", File: "/srv/app/main.go", Line: 7},
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(errors.New("boom"), panicFrames, testFilter)

	assert.Equal(t, "*errors.errorString", e.ExcType)
	assert.Equal(t, 40, e.LineNum)
	require.Len(t, e.Trace, 3)
	assert.Equal(t, "main.main", e.Trace[0].FunctionName)
	assert.Equal(t, "main.handle", e.Trace[1].FunctionName)
	assert.Equal(t, "main.parse", e.Trace[2].FunctionName)
	assert.Equal(t, "/srv/app/parse.go", e.Trace[2].FilePath)
	assert.Equal(t, map[string]any{"n": "2.5"}, e.Trace[2].Locals)
	assert.Equal(t, map[string]any{}, e.Trace[0].Locals)
}

func TestNewEventExcType(t *testing.T) {
	type custom struct{ code int }
	for _, tc := range []struct {
		name  string
		value any
		want  string
	}{
		{"string", "oops", "string"},
		{"int", 3, "int"},
		{"struct", custom{1}, "stacktrace.custom"},
		{"error", errors.New("x"), "*errors.errorString"},
		{"with-locals", WithLocals(errors.New("x"), nil), "*errors.errorString"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NewEvent(tc.value, panicFrames, testFilter).ExcType)
		})
	}
}

func TestNewEventLocals(t *testing.T) {
	v := WithLocals(errors.New("boom"), map[string]any{"user": "ann", "retries": 3, "ratio": 0.5})
	e := NewEvent(v, panicFrames, testFilter)
	require.Len(t, e.Trace, 3)
	assert.Equal(t, map[string]any{
		"n":       "2.5",
		"user":    "ann",
		"retries": int64(3),
		"ratio":   "0.5",
	}, e.Trace[2].Locals)
	assert.Empty(t, e.Trace[1].Locals)
}

func TestNewEventInnermostExcluded(t *testing.T) {
	frames := append([]Frame{
		{Function: "github.com/lib/x.Do", File: "/home/dev/go/pkg/mod/github.com/lib/x@v1.0.0/x.go", Line: 9},
	}, panicFrames...)
	e := NewEvent(WithLocals(errors.New("boom"), map[string]any{"k": 1}), frames, testFilter)
	assert.Equal(t, 9, e.LineNum)
	require.Len(t, e.Trace, 3)
	assert.Equal(t, int64(1), e.Trace[2].Locals["k"])
}

func TestNewEventEmpty(t *testing.T) {
	e := NewEvent("oops", nil, testFilter)
	assert.Equal(t, 0, e.LineNum)
	assert.Empty(t, e.Trace)

	e = NewEvent("oops", panicFrames[1:2], testFilter)
	assert.Equal(t, 100, e.LineNum)
	assert.Empty(t, e.Trace)
}

func TestEventJSON(t *testing.T) {
	e := NewEvent(errors.New("boom"), panicFrames[:1], testFilter)
	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"stackTrace": [{"functionName": "main.parse", "filePath": "/srv/app/parse.go", "lineNum": 40, "locals": {"n": "2.5"}}],
		"excType": "*errors.errorString",
		"lineNum": 40
	}`, string(b))
}
