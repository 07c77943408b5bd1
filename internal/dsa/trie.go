// Package dsa provides the radix tree used to match file paths.
package dsa

import (
	"github.com/armon/go-radix"
)

// Trie wraps go-radix with typed values. Chromium paths share long
// prefixes, which the radix tree stores once.
type Trie[V any] struct {
	tree *radix.Tree
}

// NewTrie creates a new empty radix tree.
func NewTrie[V any]() *Trie[V] {
	return &Trie[V]{tree: radix.New()}
}

// Insert sets the value for key, replacing any previous value.
func (t *Trie[V]) Insert(key string, value V) {
	t.tree.Insert(key, value)
}

// Get looks up an exact key.
func (t *Trie[V]) Get(key string) (V, bool) {
	val, found := t.tree.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	return val.(V), true
}

// LongestPrefix returns the longest key that is a prefix of query.
func (t *Trie[V]) LongestPrefix(query string) (string, V, bool) {
	key, val, found := t.tree.LongestPrefix(query)
	if !found {
		var zero V
		return "", zero, false
	}
	return key, val.(V), true
}

// WithPrefix returns the keys under prefix in lexical order.
func (t *Trie[V]) WithPrefix(prefix string) []string {
	var keys []string
	t.tree.WalkPrefix(prefix, func(k string, _ interface{}) bool {
		keys = append(keys, k)
		return false
	})
	return keys
}

// Len returns the number of keys.
func (t *Trie[V]) Len() int {
	return t.tree.Len()
}
