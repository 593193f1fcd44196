// Package record turns sealed Product fragments into composite records and
// hands them to import sinks.
//
// A Pipeline is a feed.Consumer. For every Product notification it decodes
// the fragment into an xmltree.Node, runs each registered FieldPlugin in
// registration order and stores the outputs under the plugin namespaces,
// then passes the Record to every registered Sink in order.
//
// Failures are local to one record: a decode or plugin failure skips the
// import stage for that record, and a failing sink does not prevent later
// sinks from running.
package record

import (
	"context"

	"github.com/ajitpratap0/onix/pkg/xmltree"
)

// Record is the composite record built from one Product.
type Record struct {
	// Sequence is the 0-based Product occurrence index.
	Sequence int `json:"sequence"`
	// Namespaces lists the keys of Values in plugin registration order.
	Namespaces []string `json:"-"`
	// Values maps namespace to plugin output.
	Values map[string]any `json:"fields"`
}

// Get returns the value stored under namespace.
func (r *Record) Get(namespace string) (any, bool) {
	v, ok := r.Values[namespace]
	return v, ok
}

// Decoder turns a fragment into a tree.
type Decoder interface {
	Decode(fragment string) (*xmltree.Node, error)
}

// FieldPlugin extracts one namespace of a Record from a decoded Product.
type FieldPlugin interface {
	Parse(node *xmltree.Node) (any, error)
}

// FieldFunc adapts a function to FieldPlugin.
type FieldFunc func(node *xmltree.Node) (any, error)

// Parse implements FieldPlugin.
func (f FieldFunc) Parse(node *xmltree.Node) (any, error) { return f(node) }

// Sink persists or forwards records. Sinks are invoked serially and must copy
// anything they keep from the Record after Import returns.
type Sink interface {
	Name() string
	Import(ctx context.Context, r *Record) error
}

// Closer is implemented by sinks that hold resources.
type Closer interface {
	Close(ctx context.Context) error
}
