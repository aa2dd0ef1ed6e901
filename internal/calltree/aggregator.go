// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package calltree

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stats summarizes the cumulative tree.
type Stats struct {
	// Nodes is the number of nodes, root included. Zero when empty.
	Nodes int
	// Samples is the sum of the sample counts of every node.
	Samples int
	// Calls is the sum of the call counts of every node.
	Calls int
}

// Aggregator merges linear snapshot trees into one cumulative tree. It is
// safe for concurrent use.
type Aggregator struct {
	mu   sync.Mutex
	tree *Tree // nil until the first merge

	newID func() string
	now   func() time.Time
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Merge adds the snapshot path to the cumulative tree and takes ownership of
// it. Matching nodes, compared by function name and file, get their sample
// count incremented and the path's call count added. The path is grafted
// where it first diverges from the cumulative tree. Only the first child of
// every path node is followed. Empty paths are ignored.
func (a *Aggregator) Merge(path *Tree) {
	if path == nil || path.Empty() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tree == nil {
		a.tree = path
		return
	}
	t := a.tree
	t.nodes[RootID].Samples++
	cur, src := RootID, RootID
	for {
		kids := path.nodes[src].children
		if len(kids) == 0 {
			return
		}
		next := kids[0]
		n := &path.nodes[next]
		match, ok := t.findChild(cur, n.Name, n.File)
		if !ok {
			t.graft(cur, path, next)
			return
		}
		t.nodes[match].Calls += n.Calls
		t.nodes[match].Samples++
		cur, src = match, next
	}
}

// Reset drops the cumulative tree.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.tree = nil
	a.mu.Unlock()
}

// Snapshot serializes the cumulative tree along with meta. It returns false
// when nothing was merged since the last reset.
func (a *Aggregator) Snapshot(meta Metadata) (*Profile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(meta)
}

// Flush serializes the cumulative tree and resets the aggregator atomically,
// so that no merge is lost between the two.
func (a *Aggregator) Flush(meta Metadata) (*Profile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.snapshotLocked(meta)
	a.tree = nil
	return p, ok
}

func (a *Aggregator) snapshotLocked(meta Metadata) (*Profile, bool) {
	if a.tree == nil {
		return nil, false
	}
	return &Profile{
		Application: meta.Application,
		PublicIP:    meta.PublicIP,
		ID:          a.newID(),
		Timestamp:   a.now().UnixMilli(),
		Tree:        a.tree.Export(),
	}, true
}

// Tree returns a copy of the cumulative tree, nil when empty.
func (a *Aggregator) Tree() *Tree {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tree == nil {
		return nil
	}
	return a.tree.Clone()
}

// Stats returns the size and counters of the cumulative tree.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	var s Stats
	if a.tree == nil {
		return s
	}
	s.Nodes = len(a.tree.nodes)
	for i := range a.tree.nodes {
		s.Samples += a.tree.nodes[i].Samples
		s.Calls += a.tree.nodes[i].Calls
	}
	return s
}
