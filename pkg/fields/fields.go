// Package fields contains the ONIX field plugins. Each plugin reads one
// part of a decoded <Product> and returns a typed value stored under its
// namespace in the record.
//
// Plugins read the ONIX 2.1 reference tags first and fall back to the ONIX
// 3.0 composite paths where the two releases differ. Short tags are not
// supported.
package fields

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/xmltree"
)

// Plugin namespaces.
const (
	Authors     = "authors"
	Publishers  = "publishers"
	Headers     = "headers"
	Prices      = "prices"
	Images      = "images"
	Categories  = "categories"
	Identifiers = "identifiers"
)

// Default lists the namespaces in the order a full record is built.
var Default = []string{Headers, Identifiers, Authors, Publishers, Prices, Images, Categories}

func init() {
	plugins := map[string]registry.FieldFactory{
		Authors:     func() record.FieldPlugin { return AuthorsPlugin{} },
		Publishers:  func() record.FieldPlugin { return PublishersPlugin{} },
		Headers:     func() record.FieldPlugin { return HeadersPlugin{} },
		Prices:      func() record.FieldPlugin { return PricesPlugin{} },
		Images:      func() record.FieldPlugin { return ImagesPlugin{} },
		Categories:  func() record.FieldPlugin { return CategoriesPlugin{} },
		Identifiers: func() record.FieldPlugin { return IdentifiersPlugin{} },
	}
	for name, factory := range plugins {
		if err := registry.RegisterField(name, factory); err != nil {
			panic(err)
		}
	}
}

// findAll returns the nodes of the first path that matches anything.
func findAll(n *xmltree.Node, paths ...string) []*xmltree.Node {
	for _, p := range paths {
		if found := n.FindAll(p); len(found) > 0 {
			return found
		}
	}
	return nil
}

func parseInt(namespace, field, s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeValidation, field+" is not an integer").
			WithDetail("namespace", namespace).
			WithDetail("value", s)
	}
	return v, nil
}

func parseFloat(namespace, field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeValidation, field+" is not a number").
			WithDetail("namespace", namespace).
			WithDetail("value", s)
	}
	return v, nil
}
