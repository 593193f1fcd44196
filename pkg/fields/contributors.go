package fields

import (
	"strings"

	"github.com/ajitpratap0/onix/pkg/xmltree"
)

// Contributor is one author of a product.
type Contributor struct {
	Sequence  int    `json:"sequence,omitempty"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	Inverted  string `json:"inverted,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Biography string `json:"biography,omitempty"`
}

// AuthorsPlugin extracts contributors whose role is an authorship role
// (ONIX list 17 codes A01 to A99) or is not given.
type AuthorsPlugin struct{}

// Parse implements record.FieldPlugin.
func (AuthorsPlugin) Parse(n *xmltree.Node) (any, error) {
	var out []Contributor
	for _, c := range findAll(n, "Contributor", "DescriptiveDetail/Contributor") {
		role := c.ChildText("ContributorRole")
		if role != "" && !strings.HasPrefix(role, "A") {
			continue
		}
		seq, err := parseInt(Authors, "sequence number", c.ChildText("SequenceNumber"))
		if err != nil {
			return nil, err
		}

		author := Contributor{
			Sequence:  seq,
			Role:      role,
			Inverted:  c.ChildText("PersonNameInverted"),
			FirstName: c.ChildText("NamesBeforeKey"),
			LastName:  c.ChildText("KeyNames"),
			Biography: c.ChildText("BiographicalNote"),
		}
		author.Name = c.FirstText("PersonName", "CorporateName")
		if author.Name == "" {
			author.Name = strings.TrimSpace(author.FirstName + " " + author.LastName)
		}
		if author.Name == "" {
			author.Name = author.Inverted
		}
		out = append(out, author)
	}
	return out, nil
}

// Publisher is a publishing house with its ONIX publishing role.
type Publisher struct {
	Role string `json:"role,omitempty"`
	Name string `json:"name"`
}

// Publishing groups publishers and imprints.
type Publishing struct {
	Publishers []Publisher `json:"publishers"`
	Imprints   []string    `json:"imprints,omitempty"`
}

// PublishersPlugin extracts publishers and imprints.
type PublishersPlugin struct{}

// Parse implements record.FieldPlugin.
func (PublishersPlugin) Parse(n *xmltree.Node) (any, error) {
	var out Publishing
	for _, p := range findAll(n, "Publisher", "PublishingDetail/Publisher") {
		name := p.ChildText("PublisherName")
		if name == "" {
			continue
		}
		out.Publishers = append(out.Publishers, Publisher{Role: p.ChildText("PublishingRole"), Name: name})
	}
	// ONIX 2.1 allows a bare PublisherName on the product
	if len(out.Publishers) == 0 {
		if name := n.ChildText("PublisherName"); name != "" {
			out.Publishers = append(out.Publishers, Publisher{Name: name})
		}
	}
	for _, i := range findAll(n, "Imprint", "PublishingDetail/Imprint") {
		if name := i.ChildText("ImprintName"); name != "" {
			out.Imprints = append(out.Imprints, name)
		}
	}
	return out, nil
}
