// Package tree is an in-memory model of one course's remote folder
// hierarchy. Nodes only know their children, so a tree is built and consumed
// top down.
package tree

import (
	"sort"
	"sync"

	"github.com/sidkik/studip-sync/pkg/errors"
	"github.com/sidkik/studip-sync/pkg/studip"
)

// ErrLeafChild is returned when a child is added to a file node.
var ErrLeafChild = errors.New("file nodes cannot have children")

// Tree owns the root directory node of one course.
type Tree struct {
	root *Node
}

// Node is either a directory, which wraps a Folder and owns its children, or
// a leaf, which wraps a FileRef.
type Node struct {
	folder *studip.Folder
	file   *studip.FileRef

	// Files are added concurrently during the fan-out.
	lock     sync.Mutex
	children []*Node
}

// New creates a tree whose root is a directory node for `root`.
func New(root studip.Folder) *Tree {
	t := &Tree{}
	t.root = t.NewDirectory(root)
	return t
}

// Root returns the root directory node.
func (t *Tree) Root() *Node {
	return t.root
}

// NewDirectory creates a directory node that belongs to the tree.
func (t *Tree) NewDirectory(folder studip.Folder) *Node {
	return &Node{folder: &folder}
}

// NewFile creates a leaf node that belongs to the tree.
func (t *Tree) NewFile(file studip.FileRef) *Node {
	return &Node{file: &file}
}

// Walk visits every node below the root depth first, children in the order
// they were added.
func (t *Tree) Walk(fn func(path []*Node, n *Node)) {
	var walk func(path []*Node, n *Node)
	walk = func(path []*Node, n *Node) {
		for _, child := range n.Children() {
			fn(path, child)
			if child.IsDirectory() {
				walk(append(append([]*Node{}, path...), child), child)
			}
		}
	}
	walk(nil, t.root)
}

// Len returns the number of nodes below the root.
func (t *Tree) Len() (n int) {
	t.Walk(func([]*Node, *Node) { n++ })
	return n
}

func (n *Node) IsDirectory() bool {
	return n.folder != nil
}

// Folder returns the wrapped folder. It's only valid for directories.
func (n *Node) Folder() studip.Folder {
	if n.folder == nil {
		return studip.Folder{}
	}
	return *n.folder
}

// File returns the wrapped file. It's only valid for leaves.
func (n *Node) File() studip.FileRef {
	if n.file == nil {
		return studip.FileRef{}
	}
	return *n.file
}

// Name is the remote display name of the folder or file.
func (n *Node) Name() string {
	if n.IsDirectory() {
		return n.folder.Name
	}
	return n.file.Name
}

// ID is the remote identifier of the folder or file.
func (n *Node) ID() studip.ID {
	if n.IsDirectory() {
		return n.folder.ID
	}
	return n.file.ID
}

// AddChild appends `child`. It's safe to call concurrently.
func (n *Node) AddChild(child *Node) error {
	if !n.IsDirectory() {
		return errors.WithContext(ErrLeafChild, string(n.ID()))
	}

	n.lock.Lock()
	n.children = append(n.children, child)
	n.lock.Unlock()
	return nil
}

// Children returns a copy of the node's children.
func (n *Node) Children() []*Node {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]*Node(nil), n.children...)
}

// SortByName orders the children of every directory by name, directories
// after files. Children are otherwise in the order their fetches finished.
// Nodes with the same name are ordered by ID.
func (t *Tree) SortByName() {
	var sortNode func(n *Node)
	sortNode = func(n *Node) {
		n.lock.Lock()
		sort.SliceStable(n.children, func(i, j int) bool {
			a, b := n.children[i], n.children[j]
			if a.IsDirectory() != b.IsDirectory() {
				return !a.IsDirectory()
			}
			if a.Name() != b.Name() {
				return a.Name() < b.Name()
			}
			return a.ID() < b.ID()
		})
		children := append([]*Node(nil), n.children...)
		n.lock.Unlock()

		for _, child := range children {
			if child.IsDirectory() {
				sortNode(child)
			}
		}
	}
	sortNode(t.root)
}
