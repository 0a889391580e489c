package flatten

import "iter"

// Node is either a leaf holding a T or a list of nodes. It is the typed
// counterpart of the []any input accepted by Flatten: whether a node is a
// sequence is decided when it is built, not by inspecting the value.
type Node[T any] struct {
	value T
	items []Node[T]
	list  bool
}

// Leaf returns a leaf node holding v.
func Leaf[T any](v T) Node[T] {
	return Node[T]{value: v}
}

// List returns a list node holding items. An empty list contributes no leaves.
func List[T any](items ...Node[T]) Node[T] {
	return Node[T]{items: items, list: true}
}

// Leaves is a convenience for a list node of leaves.
func Leaves[T any](values ...T) Node[T] {
	items := make([]Node[T], len(values))
	for i, v := range values {
		items[i] = Leaf(v)
	}
	return List(items...)
}

// IsList reports whether n is a list node.
func (n Node[T]) IsList() bool { return n.list }

// Value returns the leaf value; ok is false for list nodes.
func (n Node[T]) Value() (v T, ok bool) {
	if n.list {
		return v, false
	}
	return n.value, true
}

// Items returns the children of a list node.
func (n Node[T]) Items() []Node[T] { return n.items }

// Nodes returns the leaves of nodes in depth-first, left-to-right order.
func Nodes[T any](nodes []Node[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		type frame struct {
			items []Node[T]
			next  int
		}

		stack := []frame{{items: nodes}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next >= len(top.items) {
				stack = stack[:len(stack)-1]
				continue
			}

			n := top.items[top.next]
			top.next++

			if n.list {
				stack = append(stack, frame{items: n.items})
				continue
			}
			if !yield(n.value) {
				return
			}
		}
	}
}
