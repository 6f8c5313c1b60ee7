// Package nodes provides the ordered parameter context shared by workflow
// stages. A Context is append-only and preserves insertion order; stages
// communicate exclusively by reading and adding entries, never through
// private side channels. Keys are not required to be unique, lookups return
// the first match.
package nodes

import "fmt"

// Kind tags the value stored in a Node.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one tagged key/value entry in a Context.
type Node struct {
	Key string

	kind Kind
	str  string
	num  int
	flag bool
}

// String builds a string-valued node.
func String(key, value string) Node {
	return Node{Key: key, kind: KindString, str: value}
}

// Int builds an int-valued node.
func Int(key string, value int) Node {
	return Node{Key: key, kind: KindInt, num: value}
}

// Bool builds a bool-valued node.
func Bool(key string, value bool) Node {
	return Node{Key: key, kind: KindBool, flag: value}
}

// Kind reports the node's value tag.
func (n Node) Kind() Kind { return n.kind }

// Value returns the node's value untyped, for logging.
func (n Node) Value() any {
	switch n.kind {
	case KindInt:
		return n.num
	case KindBool:
		return n.flag
	default:
		return n.str
	}
}

// Context is the ordered container passed between pipeline stages. The zero
// value is ready to use.
type Context struct {
	entries []Node
}

// NewContext builds a context pre-populated with entries, in order.
func NewContext(entries ...Node) *Context {
	return &Context{entries: entries}
}

// Add appends a node, preserving insertion order.
func (c *Context) Add(n Node) {
	c.entries = append(c.entries, n)
}

// String returns the value of the first string entry under key.
func (c *Context) String(key string) (string, bool) {
	for _, n := range c.entries {
		if n.Key == key {
			return n.str, n.kind == KindString
		}
	}
	return "", false
}

// Int returns the value of the first int entry under key.
func (c *Context) Int(key string) (int, bool) {
	for _, n := range c.entries {
		if n.Key == key {
			return n.num, n.kind == KindInt
		}
	}
	return 0, false
}

// Bool returns the value of the first bool entry under key.
func (c *Context) Bool(key string) (bool, bool) {
	for _, n := range c.entries {
		if n.Key == key {
			return n.flag, n.kind == KindBool
		}
	}
	return false, false
}

// Len reports the number of entries.
func (c *Context) Len() int { return len(c.entries) }

// Keys returns every key in insertion order, duplicates included.
func (c *Context) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, n := range c.entries {
		keys[i] = n.Key
	}
	return keys
}

// List returns a copy of the entries in insertion order.
func (c *Context) List() []Node {
	out := make([]Node, len(c.entries))
	copy(out, c.entries)
	return out
}
