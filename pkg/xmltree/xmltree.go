// Package xmltree decodes a self-contained XML fragment into a small element
// tree that field-extraction plugins can query by path.
//
// The tree keeps only what ONIX plugins need: local element names,
// attributes, the element's own character data and its child elements in
// document order. Namespaces are dropped, HTML named entities (common in
// ONIX 2.1 feeds that reference the DTD) are accepted.
//
//	root, err := xmltree.Decode(`<Product><ISBN>1</ISBN></Product>`)
//	isbn := root.ChildText("ISBN")
package xmltree

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/ajitpratap0/onix/pkg/errors"
)

// Node is one decoded element.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
}

// Decoder decodes fragments with Decode. It is the default fragment decoder
// of the record pipeline.
type Decoder struct{}

// Decode implements record.Decoder.
func (Decoder) Decode(fragment string) (*Node, error) {
	return Decode(fragment)
}

// Decode parses fragment, which must contain exactly one root element.
// Failures are returned as errors of type errors.ErrorTypeDecode.
func Decode(fragment string) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(fragment))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity

	var (
		root  *Node
		stack []*Node
		text  []*strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, decodeError(err, dec.InputOffset())
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, errors.New(errors.ErrorTypeDecode, "fragment has more than one root element").
					WithDetail("offset", dec.InputOffset())
			}
			n := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			text = append(text, &strings.Builder{})

		case xml.EndElement:
			n := stack[len(stack)-1]
			n.Text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]

		case xml.CharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return nil, errors.New(errors.ErrorTypeDecode, "character data outside the root element").
						WithDetail("offset", dec.InputOffset())
				}
				continue
			}
			text[len(text)-1].Write(t)
		}
	}

	if root == nil {
		return nil, errors.New(errors.ErrorTypeDecode, "fragment has no root element")
	}
	return root, nil
}

func decodeError(err error, offset int64) error {
	return errors.Wrap(err, errors.ErrorTypeDecode, "fragment is not well-formed").
		WithDetail("offset", offset)
}

// Find returns the first descendant reached by following path, a
// slash-separated list of child names relative to n. "" returns n.
func (n *Node) Find(path string) *Node {
	if n == nil {
		return nil
	}
	if path == "" {
		return n
	}
	name, rest, _ := strings.Cut(path, "/")
	for _, c := range n.Children {
		if c.Name != name {
			continue
		}
		if found := c.Find(rest); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every node reached by following path, in document order.
func (n *Node) FindAll(path string) []*Node {
	if n == nil {
		return nil
	}
	if path == "" {
		return []*Node{n}
	}
	name, rest, _ := strings.Cut(path, "/")
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c.FindAll(rest)...)
		}
	}
	return out
}

// ChildText returns the text of the node at path, or "" when absent.
func (n *Node) ChildText(path string) string {
	if found := n.Find(path); found != nil {
		return found.Text
	}
	return ""
}

// FirstText returns the text of the first path that resolves to a non-empty value.
func (n *Node) FirstText(paths ...string) string {
	for _, p := range paths {
		if s := n.ChildText(p); s != "" {
			return s
		}
	}
	return ""
}

// Attr returns the attribute value or "".
func (n *Node) Attr(name string) string {
	if n == nil {
		return ""
	}
	return n.Attrs[name]
}
