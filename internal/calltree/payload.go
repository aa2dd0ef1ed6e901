// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package calltree

// Metadata identifies the process a profile comes from.
type Metadata struct {
	Application string
	PublicIP    string
}

// Profile is the monitoring payload produced at every flush.
type Profile struct {
	Application string        `json:"application"`
	PublicIP    string        `json:"publicIp"`
	ID          string        `json:"id"`
	Timestamp   int64         `json:"timestamp"` // milliseconds since epoch
	Tree        *FunctionNode `json:"tree"`
}

// FunctionNode is the serialized form of a Node.
type FunctionNode struct {
	FunctionName string `json:"functionName"`
	Samples      int    `json:"nSamples"`
	Line         int    `json:"lineNum"`
	Calls        int    `json:"nCalls"`
	// FilePath is nil for the root.
	FilePath *string         `json:"filePath"`
	Callees  []*FunctionNode `json:"callees"`
}

// Export converts the tree into its serialized form.
func (t *Tree) Export() *FunctionNode {
	return t.export(RootID)
}

func (t *Tree) export(id NodeID) *FunctionNode {
	n := &t.nodes[id]
	fn := &FunctionNode{
		FunctionName: n.Name,
		Samples:      n.Samples,
		Line:         n.Line,
		Calls:        n.Calls,
		Callees:      make([]*FunctionNode, 0, len(n.children)),
	}
	if id != RootID {
		file := n.File
		fn.FilePath = &file
	}
	for _, c := range n.children {
		fn.Callees = append(fn.Callees, t.export(c))
	}
	return fn
}
