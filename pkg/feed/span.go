package feed

import "fmt"

// Tracked tag names.
const (
	TagHeader  = "Header"
	TagProduct = "Product"
)

// Span is a byte range [Start, End) of the backing text. End points just
// past the '>' of the closing tag once the span is sealed.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`

	sealed bool
}

// Sealed reports whether the closing marker has been resolved.
func (s Span) Sealed() bool { return s.sealed }

// Len returns the number of bytes covered by a sealed span.
func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string {
	if !s.sealed {
		return fmt.Sprintf("[%d,?)", s.Start)
	}
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Notification is the section handed to consumers. It is only valid for the
// duration of one Notify call.
type Notification struct {
	Tag      string
	Fragment string
	Span     Span
	// Sequence is the 0-based occurrence index of a Product; 0 for a Header.
	Sequence int
}
