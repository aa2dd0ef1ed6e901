// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package stacktrace

import "strings"

// segmentPrefixTrie matches strings against a set of prefixes on '/' segment
// boundaries: "github.com/foo" is a prefix of "github.com/foo/bar" but not of
// "github.com/foobar".
type segmentPrefixTrie struct {
	root *trieNode
	size int
}

type trieNode struct {
	children map[string]*trieNode
	terminal bool
}

func newSegmentPrefixTrie() *segmentPrefixTrie {
	return &segmentPrefixTrie{root: &trieNode{}}
}

// Insert adds prefix to the trie. Empty prefixes are ignored.
func (t *segmentPrefixTrie) Insert(prefix string) {
	if prefix == "" {
		return
	}
	n := t.root
	for _, seg := range strings.Split(prefix, "/") {
		if n.children == nil {
			n.children = make(map[string]*trieNode)
		}
		child, ok := n.children[seg]
		if !ok {
			child = &trieNode{}
			n.children[seg] = child
		}
		n = child
	}
	if !n.terminal {
		n.terminal = true
		t.size++
	}
}

// InsertAll adds every prefix to the trie.
func (t *segmentPrefixTrie) InsertAll(prefixes []string) {
	for _, p := range prefixes {
		t.Insert(p)
	}
}

// HasPrefix reports whether one of the inserted prefixes is a segment prefix
// of s.
func (t *segmentPrefixTrie) HasPrefix(s string) bool {
	if s == "" {
		return false
	}
	n := t.root
	for s != "" {
		seg := s
		if i := strings.IndexByte(s, '/'); i >= 0 {
			seg, s = s[:i], s[i+1:]
		} else {
			s = ""
		}
		child, ok := n.children[seg]
		if !ok {
			return false
		}
		if child.terminal {
			return true
		}
		n = child
	}
	return false
}

// Size returns the number of distinct prefixes in the trie.
func (t *segmentPrefixTrie) Size() int {
	return t.size
}
