// Package bktree implements a BK-tree: a metric tree over fingerprint keys
// supporting insertion and exact range queries.
//
// # Structure
//
// Nodes live in a flat arena and refer to each other by index. Each node
// holds one distinct key, the owners inserted with that key, and a map from
// distance to child index:
//
//	root "0110"
//	  ├─1─► "0111"
//	  │       └─2─► "1101"
//	  └─3─► "1000"
//
// Every key in the subtree under edge d is exactly distance d from the
// parent key, so children of a node carry distinct labels.
//
// # Queries
//
// For a query q with radius r, at node n with dn = distance(n, q), only edges
// labelled d with |d - dn| <= r can lead to a match (triangle inequality).
// All other subtrees are pruned without false negatives.
//
// The tree is not safe for concurrent mutation; callers serialize Insert.
package bktree

import (
	"errors"
	"fmt"

	"github.com/ivoronin/simdog/internal/types"
)

// ErrInvalidRadius is returned for negative query radii.
var ErrInvalidRadius = errors.New("radius must be non-negative")

// none marks the absence of a root.
const none int32 = -1

type node[T any] struct {
	key      types.Key
	owners   []T
	children map[int]int32
}

// Match is one key found by Query together with its owners and distance.
type Match[T any] struct {
	Key      types.Key
	Distance int
	Owners   []T
}

// Index is a BK-tree mapping fingerprint keys to owners of type T.
type Index[T any] struct {
	metric Metric
	nodes  []node[T]
	byKey  map[types.Key]int32
	root   int32
	size   int
}

// New creates an empty index using metric m.
func New[T any](m Metric) *Index[T] {
	return &Index[T]{
		metric: m,
		byKey:  make(map[types.Key]int32),
		root:   none,
	}
}

// Metric returns the distance function of the index.
func (x *Index[T]) Metric() Metric { return x.metric }

// Len returns the number of distinct keys.
func (x *Index[T]) Len() int { return len(x.nodes) }

// Size returns the number of owners inserted.
func (x *Index[T]) Size() int { return x.size }

// Insert adds owner under key. An identical key reuses its node.
// On a metric error the index is left unchanged.
func (x *Index[T]) Insert(key types.Key, owner T) error {
	if x.root == none {
		x.root = x.alloc(key, owner)
		return nil
	}

	cur := x.root
	for {
		n := &x.nodes[cur]
		d, err := x.metric.Distance(n.key, key)
		if err != nil {
			return fmt.Errorf("insert %q: %w", key, err)
		}
		if d == 0 {
			n.owners = append(n.owners, owner)
			x.size++
			return nil
		}
		child, ok := n.children[d]
		if !ok {
			idx := x.alloc(key, owner)
			// alloc may have grown the arena; re-take the parent
			parent := &x.nodes[cur]
			if parent.children == nil {
				parent.children = make(map[int]int32)
			}
			parent.children[d] = idx
			return nil
		}
		cur = child
	}
}

// alloc appends a new node and returns its index.
func (x *Index[T]) alloc(key types.Key, owner T) int32 {
	idx := int32(len(x.nodes))
	x.nodes = append(x.nodes, node[T]{key: key, owners: []T{owner}})
	x.byKey[key] = idx
	x.size++
	return idx
}

// Query returns every key within radius of key, in visiting order.
func (x *Index[T]) Query(key types.Key, radius int) ([]Match[T], error) {
	if radius < 0 {
		return nil, ErrInvalidRadius
	}
	if x.root == none {
		return nil, nil
	}

	var matches []Match[T]
	stack := []int32{x.root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &x.nodes[cur]

		d, err := x.metric.Distance(n.key, key)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", key, err)
		}
		if d <= radius {
			matches = append(matches, Match[T]{Key: n.key, Distance: d, Owners: n.owners})
		}
		for label, child := range n.children {
			if label >= d-radius && label <= d+radius {
				stack = append(stack, child)
			}
		}
	}
	return matches, nil
}

// Keys returns the distinct keys in insertion order.
func (x *Index[T]) Keys() []types.Key {
	keys := make([]types.Key, len(x.nodes))
	for i := range x.nodes {
		keys[i] = x.nodes[i].key
	}
	return keys
}
