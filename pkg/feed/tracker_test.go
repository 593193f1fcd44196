package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/onix/pkg/errors"
)

const scenario = `<Root><Header><Title>T</Title></Header><Product><ISBN>1</ISBN></Product><Product><ISBN>2</ISBN></Product></Root>`

func mustOpen(t *testing.T, tr *Tracker, name string) {
	t.Helper()
	require.NoError(t, tr.OnOpen(name))
}

func mustClose(t *testing.T, tr *Tracker, name string) bool {
	t.Helper()
	sealed, err := tr.OnClose(name)
	require.NoError(t, err)
	return sealed
}

func requireMalformed(t *testing.T, err error, tag string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedDocument), "got %v", err)
	got, ok := errors.Detail(err, "tag")
	require.True(t, ok)
	assert.Equal(t, tag, got)
	_, ok = errors.Detail(err, "offset")
	assert.True(t, ok)
}

func TestTrackerScenarioOffsets(t *testing.T) {
	tr := NewTracker([]byte(scenario))

	for _, name := range []string{"Root", TagHeader, "Title"} {
		mustOpen(t, tr, name)
	}
	assert.False(t, mustClose(t, tr, "Title"))
	assert.True(t, mustClose(t, tr, TagHeader))
	assert.Equal(t, TagHeader, tr.CurrentTag())
	assert.Equal(t, "<Header><Title>T</Title></Header>", tr.CurrentFragment())

	mustOpen(t, tr, TagProduct)
	mustOpen(t, tr, "ISBN")
	mustClose(t, tr, "ISBN")
	assert.True(t, mustClose(t, tr, TagProduct))
	assert.Equal(t, "<Product><ISBN>1</ISBN></Product>", tr.CurrentFragment())
	assert.Equal(t, 0, tr.Current().Sequence)

	mustOpen(t, tr, TagProduct)
	mustOpen(t, tr, "ISBN")
	mustClose(t, tr, "ISBN")
	assert.True(t, mustClose(t, tr, TagProduct))
	assert.Equal(t, "<Product><ISBN>2</ISBN></Product>", tr.CurrentFragment())
	assert.Equal(t, 1, tr.Current().Sequence)
	mustClose(t, tr, "Root")

	header, ok := tr.HeaderSpan()
	require.True(t, ok)
	assert.Equal(t, 6, header.Start)
	assert.Equal(t, 39, header.End)
	assert.True(t, header.Sealed())

	spans := tr.ProductSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, [2]int{39, 72}, [2]int{spans[0].Start, spans[0].End})
	assert.Equal(t, [2]int{72, 105}, [2]int{spans[1].Start, spans[1].End})
	for _, s := range spans {
		assert.True(t, s.Sealed())
		assert.Equal(t, 33, s.Len())
	}
	assert.Equal(t, 2, tr.ProductCount())
}

func TestTrackerUnsealedProductSpan(t *testing.T) {
	tr := NewTracker([]byte(scenario))
	mustOpen(t, tr, TagProduct)

	spans := tr.ProductSpans()
	require.Len(t, spans, 1)
	assert.False(t, spans[0].Sealed())
	assert.Equal(t, 39, spans[0].Start)
	assert.Equal(t, 0, tr.ProductCount())

	// the copy is detached from the tracker
	spans[0].Start = 999
	assert.Equal(t, 39, tr.ProductSpans()[0].Start)
}

func TestTrackerIgnoresUntrackedTags(t *testing.T) {
	tr := NewTracker([]byte(scenario))
	mustOpen(t, tr, "Title")
	assert.False(t, mustClose(t, tr, "Title"))
	assert.Empty(t, tr.ProductSpans())
	_, ok := tr.HeaderSpan()
	assert.False(t, ok)
	assert.Empty(t, tr.CurrentTag())
}

func TestTrackerCloseWithoutOpen(t *testing.T) {
	for _, tag := range []string{TagProduct, TagHeader} {
		t.Run(tag, func(t *testing.T) {
			tr := NewTracker([]byte(scenario))
			_, err := tr.OnClose(tag)
			requireMalformed(t, err, tag)
		})
	}
}

func TestTrackerCloseTwice(t *testing.T) {
	tr := NewTracker([]byte(scenario))
	mustOpen(t, tr, TagProduct)
	mustClose(t, tr, TagProduct)
	_, err := tr.OnClose(TagProduct)
	requireMalformed(t, err, TagProduct)
	assert.Equal(t, 1, tr.ProductCount())
}

func TestTrackerMarkerNotFound(t *testing.T) {
	tr := NewTracker([]byte(`<Root></Root>`))
	err := tr.OnOpen(TagProduct)
	requireMalformed(t, err, TagProduct)
	marker, _ := errors.Detail(err, "marker")
	assert.Equal(t, "<Product>", marker)
}

func TestTrackerRejectsMarkerVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
		open bool // the variant is on the open marker
	}{
		{"attribute", `<Root><Product id="1"><A/></Product><Product><A/></Product></Root>`, true},
		{"whitespace", `<Root><Product ><A/></Product><Product><A/></Product></Root>`, true},
		{"empty element", `<Root><Product/><Product><A/></Product></Root>`, true},
		{"close whitespace", `<Root><Product><A/></Product ></Root>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker([]byte(tt.text))
			err := tr.OnOpen(TagProduct)
			if tt.open {
				requireMalformed(t, err, TagProduct)
				return
			}
			require.NoError(t, err)
			_, err = tr.OnClose(TagProduct)
			requireMalformed(t, err, TagProduct)
		})
	}
}

func TestTrackerSkipsLongerNamesWithSamePrefix(t *testing.T) {
	text := `<Root><ProductIdentifier>x</ProductIdentifier><Product><ProductForm>BB</ProductForm></Product></Root>`
	tr := NewTracker([]byte(text))
	mustOpen(t, tr, TagProduct)
	require.True(t, mustClose(t, tr, TagProduct))
	assert.Equal(t, "<Product><ProductForm>BB</ProductForm></Product>", tr.CurrentFragment())
}

func TestTrackerNestedProduct(t *testing.T) {
	tr := NewTracker([]byte(`<Root><Product><Product></Product></Product></Root>`))
	mustOpen(t, tr, TagProduct)
	requireMalformed(t, tr.OnOpen(TagProduct), TagProduct)
}

// A stray </Header> before the Header must not be taken as its end: the
// close marker is searched from the Header's own start.
func TestTrackerHeaderCloseSearchStartsAtHeader(t *testing.T) {
	text := `<Root><!-- </Header> --><Header><A/></Header></Root>`
	tr := NewTracker([]byte(text))
	mustOpen(t, tr, TagHeader)
	require.True(t, mustClose(t, tr, TagHeader))

	span, ok := tr.HeaderSpan()
	require.True(t, ok)
	assert.Equal(t, 24, span.Start)
	assert.Equal(t, 45, span.End)
	assert.Equal(t, "<Header><A/></Header>", tr.CurrentFragment())
}

func TestTrackerSecondHeaderReplacesFirst(t *testing.T) {
	text := `<Root><Header><A>1</A></Header><Header><A>2</A></Header></Root>`
	tr := NewTracker([]byte(text))

	mustOpen(t, tr, TagHeader)
	mustClose(t, tr, TagHeader)
	first, _ := tr.HeaderSpan()

	mustOpen(t, tr, TagHeader)
	_, ok := tr.HeaderSpan()
	assert.False(t, ok, "an open Header is not reported")
	mustClose(t, tr, TagHeader)

	second, ok := tr.HeaderSpan()
	require.True(t, ok)
	assert.Greater(t, second.Start, first.Start)
	assert.Equal(t, "<Header><A>2</A></Header>", text[second.Start:second.End])
}

func TestTrackerSkipsCommentedOpenMarker(t *testing.T) {
	text := `<Root><!-- <Product> --><Product><A>1</A></Product></Root>`
	tr := NewTracker([]byte(text))
	mustOpen(t, tr, TagProduct)
	require.True(t, mustClose(t, tr, TagProduct))

	spans := tr.ProductSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, 24, spans[0].Start)
	assert.Equal(t, "<Product><A>1</A></Product>", tr.CurrentFragment())
}

func TestTrackerSkipsCloseMarkerInOpaqueRegions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			"comment",
			`<Root><Product><!-- </Product> --><A/></Product></Root>`,
			`<Product><!-- </Product> --><A/></Product>`,
		},
		{
			"cdata",
			`<Root><Product><A><![CDATA[</Product>]]></A></Product></Root>`,
			`<Product><A><![CDATA[</Product>]]></A></Product>`,
		},
		{
			"processing instruction",
			`<Root><Product><?note </Product> ?><A/></Product></Root>`,
			`<Product><?note </Product> ?><A/></Product>`,
		},
		{
			"attributed variant in comment",
			`<Root><Product><!-- </Product x> --></Product></Root>`,
			`<Product><!-- </Product x> --></Product>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker([]byte(tt.text))
			mustOpen(t, tr, TagProduct)
			require.True(t, mustClose(t, tr, TagProduct))
			assert.Equal(t, tt.want, tr.CurrentFragment())
		})
	}
}

func TestTrackerMarkerOnlyInsideComment(t *testing.T) {
	tr := NewTracker([]byte(`<Root><!-- <Product></Product> --></Root>`))
	requireMalformed(t, tr.OnOpen(TagProduct), TagProduct)
}

func TestTrackerUnclosedComment(t *testing.T) {
	tr := NewTracker([]byte(`<Root><!-- <Product>`))
	requireMalformed(t, tr.OnOpen(TagProduct), TagProduct)
}

func TestTrackerSkipsCommentsBetweenProducts(t *testing.T) {
	text := `<Root><Product><A/></Product><!-- <Product> --><Product><B/></Product></Root>`
	tr := NewTracker([]byte(text))
	for i := 0; i < 2; i++ {
		mustOpen(t, tr, TagProduct)
		require.True(t, mustClose(t, tr, TagProduct))
	}
	assert.Equal(t, "<Product><B/></Product>", tr.CurrentFragment())
	assert.Equal(t, 2, tr.ProductCount())
}
