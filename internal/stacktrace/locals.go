// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package stacktrace

import (
	"errors"
	"fmt"
)

// LocalsCarrier is implemented by panic values that carry variable bindings
// of the frame which raised them.
type LocalsCarrier interface {
	Locals() map[string]any
}

type localsError struct {
	err    error
	locals map[string]any
}

// WithLocals wraps err so that locals are reported with the stack trace
// event built when the wrapped error is used as a panic value.
func WithLocals(err error, locals map[string]any) error {
	if err == nil {
		return nil
	}
	return &localsError{err: err, locals: locals}
}

func (e *localsError) Error() string { return e.err.Error() }
func (e *localsError) Unwrap() error { return e.err }
func (e *localsError) Locals() map[string]any { return e.locals }

// LocalsOf returns the bindings carried by a panic value, if any.
func LocalsOf(v any) map[string]any {
	if c, ok := v.(LocalsCarrier); ok {
		return c.Locals()
	}
	if err, ok := v.(error); ok {
		var c LocalsCarrier
		if errors.As(err, &c) {
			return c.Locals()
		}
	}
	return nil
}

// ToDisplayString returns the printed representation of v.
func ToDisplayString(v any) string {
	return fmt.Sprint(v)
}

// CoerceLocal returns v unchanged when it is a string, as an int64 or uint64
// when it is one of the builtin integer types, and ToDisplayString(v)
// otherwise.
func CoerceLocal(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case uintptr:
		return uint64(x)
	default:
		return ToDisplayString(v)
	}
}

// CoerceLocals applies CoerceLocal to every value of locals. The result is
// never nil.
func CoerceLocals(locals map[string]any) map[string]any {
	out := make(map[string]any, len(locals))
	for k, v := range locals {
		out[k] = CoerceLocal(v)
	}
	return out
}
