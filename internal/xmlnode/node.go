// Package xmlnode builds a small read-only element tree from an XML document.
package xmlnode

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoRoot is returned when a document has no root element.
var ErrNoRoot = errors.New("document has no root element")

// Node is one XML element with its attributes and element children.
type Node struct {
	tag      string
	attrs    []xml.Attr
	children []*Node
	text     strings.Builder
}

// Tag returns the local name of the element.
func (n *Node) Tag() string {
	return n.tag
}

// Attr looks up an attribute by local name.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Children returns the direct element children in document order.
func (n *Node) Children() []*Node {
	return n.children
}

// Child returns the first direct child with the given tag.
func (n *Node) Child(tag string) (*Node, bool) {
	for _, c := range n.children {
		if c.tag == tag {
			return c, true
		}
	}
	return nil, false
}

// Text returns the character data directly inside the element.
func (n *Node) Text() string {
	return n.text.String()
}

// Parse reads a whole document and returns its root element.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{tag: t.Name.Local, attrs: t.Copy().Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("decode xml: unexpected second root element %q", node.tag)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}
