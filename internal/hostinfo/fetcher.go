// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package hostinfo

import (
	"context"
	"sync"

	"github.com/DataDog/dd-calltree-go/internal/log"
)

// Fetcher runs Attempt on every Fetch and falls back to the last successful
// value when an attempt fails.
type Fetcher struct {
	// Name is used in log messages.
	Name string
	// Attempt fetches the value.
	Attempt func(ctx context.Context) (string, error)
	// LogFailure is called when Attempt fails and a cached value is
	// returned instead. Defaults to a debug log.
	LogFailure func(err error, cached string)

	mu        sync.Mutex
	lastValue string
	hasValue  bool
}

// Fetch returns the result of Attempt, or the cached value when Attempt
// fails after an earlier success.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	v, err := f.Attempt(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		f.lastValue, f.hasValue = v, true
		return v, nil
	}
	if !f.hasValue {
		return "", err
	}
	if f.LogFailure != nil {
		f.LogFailure(err, f.lastValue)
	} else {
		log.Debug("Unable to fetch %s, using cached value %q: %v", f.Name, f.lastValue, err)
	}
	return f.lastValue, nil
}

// Reset forgets the cached value.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	f.lastValue, f.hasValue = "", false
	f.mu.Unlock()
}
