package fields

import (
	"github.com/ajitpratap0/onix/pkg/xmltree"
)

// Headline is the book headline data of a product.
type Headline struct {
	RecordReference  string `json:"record_reference"`
	NotificationType string `json:"notification_type,omitempty"`
	ProductForm      string `json:"product_form,omitempty"`
	Title            string `json:"title"`
	Subtitle         string `json:"subtitle,omitempty"`
	Edition          int    `json:"edition,omitempty"`
	Language         string `json:"language,omitempty"`
	PageCount        int    `json:"page_count,omitempty"`
	PublicationDate  string `json:"publication_date,omitempty"`
}

// HeadersPlugin extracts the Headline.
type HeadersPlugin struct{}

// Parse implements record.FieldPlugin.
func (HeadersPlugin) Parse(n *xmltree.Node) (any, error) {
	h := Headline{
		RecordReference:  n.ChildText("RecordReference"),
		NotificationType: n.ChildText("NotificationType"),
		ProductForm:      n.FirstText("ProductForm", "DescriptiveDetail/ProductForm"),
		Title: n.FirstText(
			"Title/TitleText",
			"DistinctiveTitle",
			"DescriptiveDetail/TitleDetail/TitleElement/TitleText",
		),
		Subtitle: n.FirstText(
			"Title/Subtitle",
			"Subtitle",
			"DescriptiveDetail/TitleDetail/TitleElement/Subtitle",
		),
		Language:        n.FirstText("Language/LanguageCode", "DescriptiveDetail/Language/LanguageCode"),
		PublicationDate: n.FirstText("PublicationDate", "PublishingDetail/PublishingDate/Date"),
	}

	var err error
	if h.Edition, err = parseInt(Headers, "edition", n.FirstText("EditionNumber", "DescriptiveDetail/EditionNumber")); err != nil {
		return nil, err
	}
	if h.PageCount, err = parseInt(Headers, "page count", pageCount(n)); err != nil {
		return nil, err
	}
	return h, nil
}

// pageCount reads NumberOfPages or the ONIX 3.0 main content page extent.
func pageCount(n *xmltree.Node) string {
	if s := n.ChildText("NumberOfPages"); s != "" {
		return s
	}
	for _, e := range n.FindAll("DescriptiveDetail/Extent") {
		if e.ChildText("ExtentType") == "00" {
			return e.ChildText("ExtentValue")
		}
	}
	return ""
}

// Identifier is one product identifier.
type Identifier struct {
	// Type is the ONIX ProductIDType code (02 ISBN-10, 03 GTIN-13, 15 ISBN-13, ...)
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value"`
}

// IdentifiersPlugin extracts product identifiers.
type IdentifiersPlugin struct{}

// Parse implements record.FieldPlugin.
func (IdentifiersPlugin) Parse(n *xmltree.Node) (any, error) {
	var ids []Identifier
	for _, p := range n.FindAll("ProductIdentifier") {
		value := p.ChildText("IDValue")
		if value == "" {
			continue
		}
		ids = append(ids, Identifier{
			Type:  p.ChildText("ProductIDType"),
			Name:  p.ChildText("IDTypeName"),
			Value: value,
		})
	}
	// ONIX 2.1 legacy elements
	if isbn := n.ChildText("ISBN"); isbn != "" {
		ids = append(ids, Identifier{Type: "02", Value: isbn})
	}
	if ean := n.ChildText("EAN13"); ean != "" {
		ids = append(ids, Identifier{Type: "03", Value: ean})
	}
	return ids, nil
}
