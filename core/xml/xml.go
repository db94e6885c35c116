// Package xml parses verse-per-element XML sources and runs precompiled
// XPath queries over them. Parsing rejects custom entities, so documents
// cannot expand or fetch external content (CWE-611).
package xml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document is a parsed XML tree.
type Document struct {
	root *xmlquery.Node
}

// Node is one element of a Document.
type Node struct {
	n *xmlquery.Node
}

// Query is a compiled XPath expression, safe for concurrent use.
type Query struct {
	expr string
	x    *xpath.Expr
}

// Compile parses an XPath expression.
func Compile(expr string) (*Query, error) {
	x, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return &Query{expr: expr, x: x}, nil
}

// MustCompile is Compile for package-level queries.
func MustCompile(expr string) *Query {
	q, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return q
}

func (q *Query) String() string { return q.expr }

// Parse checks that data is well-formed and builds a Document.
func Parse(data []byte) (*Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Validate reports the first syntax error in data. Only the predefined XML
// entities are accepted.
func Validate(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed XML: %w", err)
		}
	}
}

// Root returns the document element.
func (d *Document) Root() *Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return &Node{n: c}
		}
	}
	return nil
}

// Each calls fn for every node matching q, in document order, and stops at
// the first error fn returns.
func (d *Document) Each(q *Query, fn func(*Node) error) error {
	for _, n := range xmlquery.QuerySelectorAll(d.root, q.x) {
		if err := fn(&Node{n: n}); err != nil {
			return err
		}
	}
	return nil
}

// First returns the first node matching q, or nil.
func (d *Document) First(q *Query) *Node {
	if n := xmlquery.QuerySelector(d.root, q.x); n != nil {
		return &Node{n: n}
	}
	return nil
}

func (n *Node) Name() string { return n.n.Data }

// Attr returns the named attribute, or "" when absent.
func (n *Node) Attr(name string) string { return n.n.SelectAttr(name) }

// Text returns the node's descendant text with runs of whitespace
// collapsed to single spaces.
func (n *Node) Text() string {
	return strings.Join(strings.Fields(n.n.InnerText()), " ")
}
