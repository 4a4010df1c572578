package document

import (
	"fmt"
)

// Kind identifies the shape of a Node.
type Kind int

const (
	// KindScalar is a leaf value (string, number, bool or null).
	KindScalar Kind = iota

	// KindSequence is an ordered list of nodes.
	KindSequence

	// KindMapping is a string-keyed mapping with insertion order preserved.
	KindMapping
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is one key/value pair of a mapping node.
type Entry struct {
	Key   string
	Value *Node
}

// Node is one node of a parsed configuration tree. Exactly one of the
// shape-specific fields is meaningful, selected by Kind. Nodes are owned
// by the document they belong to and are mutated in place by the
// materialization and planning passes.
type Node struct {
	Kind Kind

	// Value holds the scalar value for KindScalar nodes.
	Value interface{}

	// Items holds the elements of KindSequence nodes.
	Items []*Node

	// Entries holds the pairs of KindMapping nodes in insertion order.
	Entries []Entry
}

// Scalar returns a new scalar node holding v.
func Scalar(v interface{}) *Node {
	return &Node{Kind: KindScalar, Value: v}
}

// Sequence returns a new sequence node holding the given items.
func Sequence(items ...*Node) *Node {
	return &Node{Kind: KindSequence, Items: items}
}

// Mapping returns a new empty mapping node.
func Mapping() *Node {
	return &Node{Kind: KindMapping}
}

// IsScalar reports whether the node is a scalar.
func (n *Node) IsScalar() bool { return n != nil && n.Kind == KindScalar }

// IsSequence reports whether the node is a sequence.
func (n *Node) IsSequence() bool { return n != nil && n.Kind == KindSequence }

// IsMapping reports whether the node is a mapping.
func (n *Node) IsMapping() bool { return n != nil && n.Kind == KindMapping }

// StringValue returns the scalar value as a string. The second return is
// false when the node is not a string scalar.
func (n *Node) StringValue() (string, bool) {
	if !n.IsScalar() {
		return "", false
	}
	s, ok := n.Value.(string)
	return s, ok
}

// Get returns the value for key in a mapping node.
func (n *Node) Get(key string) (*Node, bool) {
	if !n.IsMapping() {
		return nil, false
	}
	for _, e := range n.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Set replaces the value for key, or appends a new entry when the key is
// not present. Insertion order of existing keys is preserved.
func (n *Node) Set(key string, value *Node) {
	for i := range n.Entries {
		if n.Entries[i].Key == key {
			n.Entries[i].Value = value
			return
		}
	}
	n.Entries = append(n.Entries, Entry{Key: key, Value: value})
}

// Delete removes key from a mapping node and returns its former value.
func (n *Node) Delete(key string) (*Node, bool) {
	if !n.IsMapping() {
		return nil, false
	}
	for i, e := range n.Entries {
		if e.Key == key {
			n.Entries = append(n.Entries[:i], n.Entries[i+1:]...)
			return e.Value, true
		}
	}
	return nil, false
}

// Len returns the number of mapping entries or sequence items.
func (n *Node) Len() int {
	switch n.Kind {
	case KindMapping:
		return len(n.Entries)
	case KindSequence:
		return len(n.Items)
	default:
		return 0
	}
}

// Keys returns the mapping keys in insertion order.
func (n *Node) Keys() []string {
	keys := make([]string, 0, len(n.Entries))
	for _, e := range n.Entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// SoleKey returns the single key and value of a one-entry mapping.
// The third return is false for any other shape.
func (n *Node) SoleKey() (string, *Node, bool) {
	if !n.IsMapping() || len(n.Entries) != 1 {
		return "", nil, false
	}
	return n.Entries[0].Key, n.Entries[0].Value, true
}

// Interface converts the tree rooted at n to plain Go values: scalars as
// themselves, sequences as []interface{} and mappings as
// map[string]interface{}. Mapping order is lost; use MarshalJSON when
// order matters.
func (n *Node) Interface() interface{} {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindScalar:
		return n.Value
	case KindSequence:
		items := make([]interface{}, len(n.Items))
		for i, item := range n.Items {
			items[i] = item.Interface()
		}
		return items
	case KindMapping:
		m := make(map[string]interface{}, len(n.Entries))
		for _, e := range n.Entries {
			m[e.Key] = e.Value.Interface()
		}
		return m
	default:
		return nil
	}
}

// FromInterface builds a node tree from plain Go values produced by JSON
// or YAML decoding. map[string]interface{} keys are inserted in sorted
// order for determinism; callers that need a specific order should build
// mappings explicitly with Set.
func FromInterface(v interface{}) *Node {
	switch val := v.(type) {
	case nil:
		return Scalar(nil)
	case []interface{}:
		items := make([]*Node, len(val))
		for i, item := range val {
			items[i] = FromInterface(item)
		}
		return &Node{Kind: KindSequence, Items: items}
	case map[string]interface{}:
		m := Mapping()
		for _, k := range sortedKeys(val) {
			m.Set(k, FromInterface(val[k]))
		}
		return m
	case *Node:
		return val
	default:
		return Scalar(val)
	}
}

// Clone returns a deep copy of the tree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Value: n.Value}
	if n.Items != nil {
		out.Items = make([]*Node, len(n.Items))
		for i, item := range n.Items {
			out.Items[i] = item.Clone()
		}
	}
	if n.Entries != nil {
		out.Entries = make([]Entry, len(n.Entries))
		for i, e := range n.Entries {
			out.Entries[i] = Entry{Key: e.Key, Value: e.Value.Clone()}
		}
	}
	return out
}
