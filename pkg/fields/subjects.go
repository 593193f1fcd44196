package fields

import (
	"github.com/ajitpratap0/onix/pkg/xmltree"
)

// Category is one subject classification.
type Category struct {
	// Scheme is the ONIX subject scheme identifier (10 BISAC, 12 BIC, 93 Thema, ...)
	Scheme  string `json:"scheme"`
	Code    string `json:"code,omitempty"`
	Heading string `json:"heading,omitempty"`
	Main    bool   `json:"main,omitempty"`
}

// bisacScheme is the scheme of the ONIX 2.1 BASICMainSubject element.
const bisacScheme = "10"

// CategoriesPlugin extracts subject codes and headings.
type CategoriesPlugin struct{}

// Parse implements record.FieldPlugin.
func (CategoriesPlugin) Parse(n *xmltree.Node) (any, error) {
	var out []Category
	if code := n.ChildText("BASICMainSubject"); code != "" {
		out = append(out, Category{Scheme: bisacScheme, Code: code, Main: true})
	}
	for _, s := range findAll(n, "Subject", "DescriptiveDetail/Subject") {
		c := Category{
			Scheme:  s.ChildText("SubjectSchemeIdentifier"),
			Code:    s.ChildText("SubjectCode"),
			Heading: s.ChildText("SubjectHeadingText"),
		}
		if c.Code == "" && c.Heading == "" {
			continue
		}
		// ONIX 3.0 marks the main subject with an empty MainSubject element
		c.Main = s.Find("MainSubject") != nil
		out = append(out, c)
	}
	return out, nil
}
