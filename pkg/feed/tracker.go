package feed

import (
	"bytes"

	"github.com/ajitpratap0/onix/pkg/errors"
)

// marker is a literal tag marker. prefix is the marker without its closing
// '>' and is used to spot variants of the same tag.
type marker struct {
	prefix string
	exact  string
}

var (
	headerOpen   = marker{prefix: "<" + TagHeader, exact: "<" + TagHeader + ">"}
	headerClose  = marker{prefix: "</" + TagHeader, exact: "</" + TagHeader + ">"}
	productOpen  = marker{prefix: "<" + TagProduct, exact: "<" + TagProduct + ">"}
	productClose = marker{prefix: "</" + TagProduct, exact: "</" + TagProduct + ">"}
)

// Tracker resolves Header and Product spans in a backing text from
// name-only open/close events.
type Tracker struct {
	text []byte

	header       Span
	headerOpen   bool
	headerSealed bool

	products    []Span
	productOpen bool
	count       int

	current Notification
}

// NewTracker returns a tracker over text. The text must not be modified
// while the tracker is in use.
func NewTracker(text []byte) *Tracker {
	return &Tracker{text: text}
}

// OnOpen records the start of a tracked section. Untracked names are ignored.
func (t *Tracker) OnOpen(name string) error {
	switch name {
	case TagProduct:
		offset := 0
		if n := len(t.products); n > 0 {
			if t.productOpen {
				return malformed(name, t.products[n-1].Start, "nested Product sections are not supported")
			}
			offset = t.products[n-1].End
		}
		start, err := t.locate(productOpen, offset, name)
		if err != nil {
			return err
		}
		t.products = append(t.products, Span{Start: start, End: start})
		t.productOpen = true

	case TagHeader:
		if t.headerOpen {
			return malformed(name, t.header.Start, "nested Header sections are not supported")
		}
		// a second Header replaces the first; search past the sealed one
		offset := 0
		if t.headerSealed {
			offset = t.header.End
		}
		start, err := t.locate(headerOpen, offset, name)
		if err != nil {
			return err
		}
		t.header = Span{Start: start, End: start}
		t.headerOpen = true
		t.headerSealed = false
	}
	return nil
}

// OnClose seals the open section of the given name and makes its fragment
// the current notification. sealed is true when a tracked section was
// completed and consumers should be notified.
func (t *Tracker) OnClose(name string) (sealed bool, err error) {
	switch name {
	case TagProduct:
		n := len(t.products)
		if !t.productOpen {
			offset := 0
			if n > 0 {
				offset = t.products[n-1].End
			}
			return false, malformed(name, offset, "closing Product without opening Product")
		}
		span := t.products[n-1]
		idx, err := t.locate(productClose, span.Start, name)
		if err != nil {
			return false, err
		}
		span.End = idx + len(productClose.exact)
		span.sealed = true
		t.products[n-1] = span
		t.productOpen = false
		t.count++
		t.current = Notification{
			Tag:      TagProduct,
			Fragment: string(t.text[span.Start:span.End]),
			Span:     span,
			Sequence: n - 1,
		}
		return true, nil

	case TagHeader:
		if !t.headerOpen {
			offset := 0
			if t.headerSealed {
				offset = t.header.End
			}
			return false, malformed(name, offset, "closing Header without opening Header")
		}
		idx, err := t.locate(headerClose, t.header.Start, name)
		if err != nil {
			return false, err
		}
		t.header.End = idx + len(headerClose.exact)
		t.header.sealed = true
		t.headerOpen = false
		t.headerSealed = true
		t.current = Notification{
			Tag:      TagHeader,
			Fragment: string(t.text[t.header.Start:t.header.End]),
			Span:     t.header,
		}
		return true, nil
	}
	return false, nil
}

// opaque regions may hold marker text that is not markup.
var opaque = []struct{ open, close []byte }{
	{[]byte("<!--"), []byte("-->")},
	{[]byte("<![CDATA["), []byte("]]>")},
	{[]byte("<?"), []byte("?>")},
}

// locate finds the exact marker at or after from, outside comments, CDATA
// sections and processing instructions. The first such occurrence of the
// marker's tag, in any spelling, must be the bare marker.
func (t *Tracker) locate(m marker, from int, tag string) (int, error) {
	pos := from
	scanned := from
	for pos <= len(t.text) {
		i := bytes.Index(t.text[pos:], []byte(m.prefix))
		if i < 0 {
			break
		}
		abs := pos + i
		end, inside := t.opaqueEnd(scanned, abs)
		if inside {
			pos, scanned = end, end
			continue
		}
		scanned = end
		next := abs + len(m.prefix)
		if next < len(t.text) && isNameByte(t.text[next]) {
			// a longer name sharing the prefix, e.g. <ProductIdentifier>
			pos = next
			continue
		}
		if !bytes.HasPrefix(t.text[abs:], []byte(m.exact)) {
			return 0, malformed(tag, abs, "tag is not a bare "+m.exact+" marker").
				WithDetail("marker", m.exact)
		}
		return abs, nil
	}
	return 0, malformed(tag, from, "marker "+m.exact+" not found").WithDetail("marker", m.exact)
}

// opaqueEnd walks the opaque regions starting in [from, at). If at falls
// inside one it returns the offset just past that region and true;
// otherwise it returns at and false. An unclosed region extends to the end
// of the text.
func (t *Tracker) opaqueEnd(from, at int) (int, bool) {
	pos := from
	for pos < at {
		start, kind := -1, -1
		for k, o := range opaque {
			if i := bytes.Index(t.text[pos:at], o.open); i >= 0 && (start < 0 || pos+i < start) {
				start, kind = pos+i, k
			}
		}
		if start < 0 {
			return at, false
		}
		body := start + len(opaque[kind].open)
		j := bytes.Index(t.text[body:], opaque[kind].close)
		if j < 0 {
			return len(t.text), true
		}
		end := body + j + len(opaque[kind].close)
		if end > at {
			return end, true
		}
		pos = end
	}
	return pos, false
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' ||
		b == '_' || b == '-' || b == '.' || b == ':' ||
		b >= 0x80
}

func malformed(tag string, offset int, msg string) *errors.Error {
	return errors.New(errors.ErrorTypeMalformedDocument, msg).
		WithDetail("tag", tag).
		WithDetail("offset", offset)
}

// ProductCount returns the number of sealed Product sections.
func (t *Tracker) ProductCount() int { return t.count }

// ProductSpans returns a copy of the Product span sequence. The last entry
// is unsealed while a Product is open.
func (t *Tracker) ProductSpans() []Span {
	out := make([]Span, len(t.products))
	copy(out, t.products)
	return out
}

// HeaderSpan returns the most recent sealed Header span.
func (t *Tracker) HeaderSpan() (Span, bool) {
	if !t.headerSealed {
		return Span{}, false
	}
	return t.header, true
}

// Current returns the most recently sealed section.
func (t *Tracker) Current() Notification { return t.current }

// CurrentTag returns the tag of the most recently sealed section.
func (t *Tracker) CurrentTag() string { return t.current.Tag }

// CurrentFragment returns the fragment of the most recently sealed section.
func (t *Tracker) CurrentFragment() string { return t.current.Fragment }
