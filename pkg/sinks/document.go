package sinks

import (
	"strconv"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/fields"
	"github.com/ajitpratap0/onix/pkg/record"
)

// Document is the serialized form of a record shared by the document and
// stream sinks.
type Document struct {
	Key      string                     `json:"key"`
	Feed     string                     `json:"feed,omitempty"`
	Sequence int                        `json:"sequence"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

// Encode serializes every namespace of r independently so that sinks can
// store them as separate columns or embedded documents.
func Encode(feed string, r *record.Record) (*Document, error) {
	doc := &Document{
		Key:      Key(feed, r),
		Feed:     feed,
		Sequence: r.Sequence,
		Fields:   make(map[string]json.RawMessage, len(r.Namespaces)),
	}
	for _, ns := range r.Namespaces {
		raw, err := json.Marshal(r.Values[ns])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode record field").
				WithDetail("namespace", ns).
				WithDetail("sequence", r.Sequence)
		}
		doc.Fields[ns] = raw
	}
	return doc, nil
}

// Marshal encodes the whole document as one JSON object.
func (d *Document) Marshal() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode record").
			WithDetail("sequence", d.Sequence)
	}
	return b, nil
}

// Key identifies a record across runs. It is the product RecordReference
// when the headers namespace carries one, and feed#sequence otherwise.
func Key(feed string, r *record.Record) string {
	if v, ok := r.Get(fields.Headers); ok {
		switch h := v.(type) {
		case fields.Headline:
			if h.RecordReference != "" {
				return h.RecordReference
			}
		case *fields.Headline:
			if h != nil && h.RecordReference != "" {
				return h.RecordReference
			}
		}
	}
	if feed == "" {
		feed = "onix"
	}
	return feed + "#" + strconv.Itoa(r.Sequence)
}
