package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"

	"github.com/ajitpratap0/onix/pkg/errors"
)

// Handler receives element events by name only.
type Handler interface {
	OnOpen(name string) error
	OnClose(name string) error
}

// Tokenizer scans a document once and reports every element open and close
// event to h. An error returned by h stops the scan and is returned as is.
type Tokenizer interface {
	Tokenize(ctx context.Context, r io.Reader, h Handler) error
}

// XMLTokenizer is a Tokenizer over encoding/xml. Names are reported as
// written: a prefixed element is reported as "prefix:Local". A prefixed
// Header or Product is malformed, since its bare marker never appears in the
// text.
type XMLTokenizer struct {
	// CharsetReader converts non-UTF-8 input declared in the XML prolog.
	CharsetReader func(label string, input io.Reader) (io.Reader, error)
}

// NewXMLTokenizer returns a tokenizer that understands the charsets known to
// golang.org/x/net/html/charset.
func NewXMLTokenizer() *XMLTokenizer {
	return &XMLTokenizer{CharsetReader: charset.NewReaderLabel}
}

// Tokenize implements Tokenizer. Malformed XML is reported as
// errors.ErrorTypeMalformedDocument. ctx is checked on every open event.
func (t *XMLTokenizer) Tokenize(ctx context.Context, r io.Reader, h Handler) error {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = t.CharsetReader

	var stack []string
	seenRoot := false

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeMalformedDocument, "document is not well-formed").
				WithDetail("offset", dec.InputOffset())
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("parse cancelled: %w", err)
			}
			if seenRoot && len(stack) == 0 {
				return errors.New(errors.ErrorTypeMalformedDocument, "document has more than one root element").
					WithDetail("offset", dec.InputOffset())
			}
			seenRoot = true
			if err := checkPrefix(el.Name, dec.InputOffset()); err != nil {
				return err
			}
			name := qualifiedName(el.Name)
			stack = append(stack, name)
			if err := h.OnOpen(name); err != nil {
				return err
			}

		case xml.EndElement:
			name := qualifiedName(el.Name)
			// RawToken does not match end tags; the stack does
			if len(stack) == 0 || stack[len(stack)-1] != name {
				return errors.Newf(errors.ErrorTypeMalformedDocument, "unexpected closing tag </%s>", name).
					WithDetail("tag", name).
					WithDetail("offset", dec.InputOffset())
			}
			stack = stack[:len(stack)-1]
			if err := h.OnClose(name); err != nil {
				return err
			}
		}
	}

	if len(stack) > 0 {
		return errors.Newf(errors.ErrorTypeMalformedDocument, "unexpected end of document inside <%s>", stack[len(stack)-1]).
			WithDetail("tag", stack[len(stack)-1]).
			WithDetail("offset", dec.InputOffset())
	}
	if !seenRoot {
		return errors.New(errors.ErrorTypeMalformedDocument, "document has no root element").
			WithDetail("offset", 0)
	}
	return nil
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func checkPrefix(n xml.Name, offset int64) error {
	if n.Space == "" || (n.Local != TagProduct && n.Local != TagHeader) {
		return nil
	}
	name := qualifiedName(n)
	return errors.Newf(errors.ErrorTypeMalformedDocument, "prefixed <%s> section is not supported", name).
		WithDetail("tag", n.Local).
		WithDetail("offset", offset)
}
