// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package stacktrace

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterIsExcluded(t *testing.T) {
	f := NewFilter(
		WithExcludedPrefixes("/usr/local/go/src", "/home/dev/go/pkg/mod/"),
		WithExcludedSubstrings(defaultExcludedSubstrings...),
	)
	for _, tc := range []struct {
		name     string
		file     string
		excluded bool
	}{
		{"empty", "", true},
		{"autogenerated", "<autogenerated>", true},
		{"goroot", "/usr/local/go/src/runtime/proc.go", true},
		{"goroot-sibling", "/usr/local/go/srcx/main.go", false},
		{"modcache", "/home/dev/go/pkg/mod/github.com/sirupsen/logrus@v1.9.3/entry.go", true},
		{"other-modcache", "/var/cache/pkg/mod/golang.org/x/time@v0.6.0/rate/rate.go", true},
		{"vendor", "/srv/app/vendor/github.com/google/uuid/uuid.go", true},
		{"gopath-runtime", "/home/dev/go/src/runtime/panic.go", true},
		{"application", "/srv/app/internal/handlers/user.go", false},
		{"trimmed-module", "github.com/sirupsen/logrus@v1.9.3/entry.go", true},
		{"trimmed-std", "runtime/proc.go", true},
		{"trimmed-std-nested", "net/http/server.go", true},
		{"trimmed-application", "github.com/acme/shop/cart/cart.go", false},
		{"windows", "C:/Users/dev/app/main.go", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.excluded, f.IsExcluded(tc.file))
		})
	}
}

func TestFilterMainModule(t *testing.T) {
	f := NewFilter()
	f.mainModule = "shop"
	assert.False(t, f.IsExcluded("shop/cart/cart.go"))
	assert.True(t, f.IsExcluded("shopping/cart.go"))
	assert.True(t, f.IsExcluded("fmt/print.go"))
}

func TestNilFilter(t *testing.T) {
	var f *Filter
	assert.True(t, f.IsExcluded(""))
	assert.False(t, f.IsExcluded("/usr/local/go/src/runtime/proc.go"))
	assert.False(t, f.IsExcluded("runtime/proc.go"))
}

func TestEmptyFilter(t *testing.T) {
	f := NewFilter()
	assert.True(t, f.IsExcluded(""))
	assert.False(t, f.IsExcluded("/usr/local/go/src/runtime/proc.go"))
}

func TestDefaultFilter(t *testing.T) {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Skip("no caller information")
	}
	f := DefaultFilter()
	assert.False(t, f.IsExcluded(self))
	assert.True(t, f.IsExcluded(filepath.Join(goRootSrc(), "runtime", "proc.go")))
	assert.True(t, f.IsExcluded(filepath.Join(moduleCache(), "github.com", "google", "uuid@v1.6.0", "uuid.go")))

	extra := DefaultFilter(WithExcludedPrefixes(filepath.Dir(self)))
	assert.True(t, extra.IsExcluded(self))
}

func TestDefaultFilterEnv(t *testing.T) {
	t.Setenv("GOMODCACHE", "/tmp/modcache")
	t.Setenv("GOROOT", "/opt/go")
	assert.Equal(t, "/tmp/modcache", moduleCache())
	assert.Equal(t, filepath.Join("/opt/go", "src"), goRootSrc())

	t.Setenv("GOMODCACHE", "")
	t.Setenv("GOPATH", "/tmp/gopath")
	assert.Equal(t, filepath.Join("/tmp/gopath", "pkg", "mod"), moduleCache())
}
