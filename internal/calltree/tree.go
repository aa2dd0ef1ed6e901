// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

// Package calltree builds call trees out of stack snapshots and aggregates
// them into a cumulative tree with per-function sample and call counts.
package calltree

// NodeID addresses a node inside a Tree.
type NodeID int32

const (
	// RootID is the id of the synthetic root of every tree.
	RootID NodeID = 0

	noNode NodeID = -1

	rootName = "root"
	rootLine = 1
)

// Node is one function of a call tree. Two nodes denote the same function
// when both Name and File match; Line is informational.
type Node struct {
	Name string
	// File is empty only for the root.
	File string
	Line int
	// Samples counts how many merged snapshots went through this node.
	Samples int
	// Calls counts how many of those snapshots entered the function.
	Calls int

	parent   NodeID
	children []NodeID
}

// Tree is an arena of nodes. The root is always stored at RootID and every
// other node has exactly one parent.
type Tree struct {
	nodes []Node
}

func newTree() *Tree {
	return &Tree{
		nodes: []Node{{
			Name:    rootName,
			Line:    rootLine,
			Samples: 1,
			Calls:   1,
			parent:  noNode,
		}},
	}
}

// Root returns the id of the root node.
func (t *Tree) Root() NodeID { return RootID }

// Len returns the number of nodes, root included.
func (t *Tree) Len() int { return len(t.nodes) }

// Empty reports whether the root has no children.
func (t *Tree) Empty() bool { return len(t.nodes[RootID].children) == 0 }

// Node returns a copy of the node with the given id.
func (t *Tree) Node(id NodeID) Node {
	n := t.nodes[id]
	n.children = nil
	return n
}

// Children returns the children of id in insertion order.
func (t *Tree) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), t.nodes[id].children...)
}

// Parent returns the parent of id. The root has no parent.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	p := t.nodes[id].parent
	return p, p != noNode
}

// Walk visits every node in depth-first pre-order, children in insertion
// order. Returning false from fn skips the node's subtree.
func (t *Tree) Walk(fn func(id NodeID, depth int) bool) {
	t.walk(RootID, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(NodeID, int) bool) {
	if !fn(id, depth) {
		return
	}
	for _, c := range t.nodes[id].children {
		t.walk(c, depth+1, fn)
	}
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	c := &Tree{nodes: make([]Node, len(t.nodes))}
	copy(c.nodes, t.nodes)
	for i := range c.nodes {
		c.nodes[i].children = append([]NodeID(nil), t.nodes[i].children...)
	}
	return c
}

func (t *Tree) appendChild(parent NodeID, n Node) NodeID {
	id := NodeID(len(t.nodes))
	n.parent = parent
	n.children = nil
	t.nodes = append(t.nodes, n)
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	return id
}

func (t *Tree) findChild(parent NodeID, name, file string) (NodeID, bool) {
	for _, c := range t.nodes[parent].children {
		if n := &t.nodes[c]; n.Name == name && n.File == file {
			return c, true
		}
	}
	return noNode, false
}

// graft copies the subtree rooted at src's node id below parent.
func (t *Tree) graft(parent NodeID, src *Tree, id NodeID) {
	dst := t.appendChild(parent, src.nodes[id])
	for _, c := range src.nodes[id].children {
		t.graft(dst, src, c)
	}
}
