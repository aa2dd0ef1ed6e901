// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package stacktrace

import (
	"go/build"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
)

var defaultExcludedSubstrings = []string{
	"/pkg/mod/",
	"/vendor/",
	"/go/src/runtime/",
}

// Filter classifies source files as library code (excluded) or application
// code (included). A Filter is immutable once built and safe for concurrent
// use.
type Filter struct {
	prefixes   *segmentPrefixTrie
	substrings []string
	mainModule string
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithExcludedPrefixes excludes every file below one of the given
// directories. Matching happens on whole path segments.
func WithExcludedPrefixes(prefixes ...string) FilterOption {
	return func(f *Filter) {
		for _, p := range prefixes {
			f.prefixes.Insert(normalizePath(p))
		}
	}
}

// WithExcludedSubstrings excludes every file whose path contains one of the
// given substrings.
func WithExcludedSubstrings(substrings ...string) FilterOption {
	return func(f *Filter) {
		f.substrings = append(f.substrings, substrings...)
	}
}

// NewFilter returns a filter which only excludes what opts configure, plus
// unresolvable (empty or synthetic) file names.
func NewFilter(opts ...FilterOption) *Filter {
	f := &Filter{prefixes: newSegmentPrefixTrie()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DefaultFilter returns a filter excluding the Go installation, the module
// cache and vendored code, on top of what opts configure.
func DefaultFilter(opts ...FilterOption) *Filter {
	base := []FilterOption{
		WithExcludedPrefixes(goRootSrc(), moduleCache()),
		WithExcludedSubstrings(defaultExcludedSubstrings...),
	}
	f := NewFilter(append(base, opts...)...)
	if bi, ok := debug.ReadBuildInfo(); ok {
		f.mainModule = bi.Main.Path
	}
	return f
}

// IsExcluded reports whether file belongs to library code. A nil Filter
// only excludes empty file names.
func (f *Filter) IsExcluded(file string) bool {
	if file == "" {
		return true
	}
	if f == nil {
		return false
	}
	if strings.HasPrefix(file, "<") {
		// <autogenerated> and friends
		return true
	}
	file = normalizePath(file)
	if f.prefixes.HasPrefix(file) {
		return true
	}
	for _, s := range f.substrings {
		if strings.Contains(file, s) {
			return true
		}
	}
	if !path.IsAbs(file) && !isWindowsAbs(file) {
		return f.isTrimmedLibrary(file)
	}
	return false
}

// isTrimmedLibrary handles binaries built with -trimpath, where files are
// reported as "<module>@<version>/file.go" or "<std package>/file.go".
func (f *Filter) isTrimmedLibrary(file string) bool {
	if f.mainModule != "" && (file == f.mainModule || strings.HasPrefix(file, f.mainModule+"/")) {
		return false
	}
	if strings.Contains(file, "@v") {
		return true
	}
	first, _, _ := strings.Cut(file, "/")
	return !strings.Contains(first, ".")
}

func normalizePath(p string) string {
	return strings.TrimSuffix(filepath.ToSlash(p), "/")
}

func isWindowsAbs(p string) bool {
	return len(p) > 2 && p[1] == ':' && p[2] == '/'
}

func goRootSrc() string {
	root := os.Getenv("GOROOT")
	if root == "" {
		root = runtime.GOROOT() //nolint:staticcheck
	}
	if root == "" {
		return ""
	}
	return filepath.Join(root, "src")
}

func moduleCache() string {
	if mc := os.Getenv("GOMODCACHE"); mc != "" {
		return mc
	}
	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		gopath = build.Default.GOPATH
	}
	if gopath == "" {
		return ""
	}
	// GOPATH may be a list; the module cache lives in the first entry.
	first := filepath.SplitList(gopath)[0]
	return filepath.Join(first, "pkg", "mod")
}
