// Package vfs holds the slice of the filesystem the process core touches:
// reference-counted directory nodes and open-file objects. Path resolution
// and real I/O live elsewhere; what matters here is the ownership protocol.
// Every occupied descriptor-table slot and every working-directory pointer
// owns exactly one reference, taken when the slot is populated (or cloned at
// process creation) and dropped exactly once during cleanup. Dropping a
// reference that was never taken is a programming error and panics.
package vfs

import (
	"fmt"
	"sync/atomic"
)

// Mode describes how a file was opened.
type Mode uint8

const (
	ModeRead Mode = 1 << iota
	ModeWrite
	ModeAppend
)

// Node is a filesystem object (directory or file body) shared between
// processes by reference count. A new node starts with the creator's single
// reference.
type Node struct {
	name string
	refs atomic.Int64
}

// NewNode returns a node named name holding one reference for the caller.
func NewNode(name string) *Node {
	n := &Node{name: name}
	n.refs.Store(1)
	return n
}

// Name returns the node's display name.
func (n *Node) Name() string { return n.name }

// Ref takes an additional reference and returns n for chaining.
func (n *Node) Ref() *Node {
	if n.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("vfs: node %q revived from zero references", n.name))
	}
	return n
}

// Put drops one reference. The count reaching zero means the node is dead;
// going below zero means an owner released twice.
func (n *Node) Put() {
	if n.refs.Add(-1) < 0 {
		panic(fmt.Sprintf("vfs: node %q released more times than referenced", n.name))
	}
}

// RefCount reports the current reference count. Diagnostic and test use.
func (n *Node) RefCount() int64 { return n.refs.Load() }

// File is an open-file object. It pins one reference on its node for as long
// as the file itself is referenced; descriptor tables share File pointers and
// count their slots as references on the File.
type File struct {
	node *Node
	mode Mode
	refs atomic.Int64
}

// NewFile opens node with mode, taking a node reference owned by the file.
// The returned file carries one reference for the caller.
func NewFile(node *Node, mode Mode) *File {
	f := &File{node: node.Ref(), mode: mode}
	f.refs.Store(1)
	return f
}

// Node returns the underlying node.
func (f *File) Node() *Node { return f.node }

// Mode returns the open mode.
func (f *File) Mode() Mode { return f.mode }

// Ref takes an additional reference and returns f for chaining.
func (f *File) Ref() *File {
	if f.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("vfs: file on %q revived from zero references", f.node.Name()))
	}
	return f
}

// Put drops one reference. The last Put releases the file's node reference.
func (f *File) Put() {
	n := f.refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("vfs: file on %q released more times than referenced", f.node.Name()))
	}
	if n == 0 {
		f.node.Put()
	}
}

// RefCount reports the current reference count. Diagnostic and test use.
func (f *File) RefCount() int64 { return f.refs.Load() }
