package fields

import (
	"github.com/ajitpratap0/onix/pkg/xmltree"
)

// Image is a linked media resource such as a cover.
type Image struct {
	Type   string `json:"type,omitempty"`
	Format string `json:"format,omitempty"`
	Link   string `json:"link"`
}

// ImagesPlugin extracts MediaFile links, or ONIX 3.0 supporting resource
// links.
type ImagesPlugin struct{}

// Parse implements record.FieldPlugin.
func (ImagesPlugin) Parse(n *xmltree.Node) (any, error) {
	var out []Image
	for _, m := range n.FindAll("MediaFile") {
		link := m.ChildText("MediaFileLink")
		if link == "" {
			continue
		}
		out = append(out, Image{
			Type:   m.ChildText("MediaFileTypeCode"),
			Format: m.ChildText("MediaFileFormatCode"),
			Link:   link,
		})
	}
	if len(out) > 0 {
		return out, nil
	}

	for _, r := range n.FindAll("CollateralDetail/SupportingResource") {
		contentType := r.ChildText("ResourceContentType")
		for _, v := range r.FindAll("ResourceVersion") {
			link := v.ChildText("ResourceLink")
			if link == "" {
				continue
			}
			out = append(out, Image{Type: contentType, Format: v.ChildText("ResourceForm"), Link: link})
		}
	}
	return out, nil
}
