package sinks

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/onix/pkg/fields"
	"github.com/ajitpratap0/onix/pkg/record"
)

func TestEncode(t *testing.T) {
	rec := &record.Record{
		Sequence:   7,
		Namespaces: []string{"headers", "prices"},
		Values: map[string]any{
			"headers": map[string]string{"title": "Go"},
			"prices":  []float64{9.99},
		},
	}

	doc, err := Encode("daily", rec)
	require.NoError(t, err)
	assert.Equal(t, 7, doc.Sequence)
	assert.JSONEq(t, `{"title":"Go"}`, string(doc.Fields["headers"]))
	assert.JSONEq(t, `[9.99]`, string(doc.Fields["prices"]))

	b, err := doc.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"daily#7","feed":"daily","sequence":7,"fields":{"headers":{"title":"Go"},"prices":[9.99]}}`, string(b))
}

func TestEncodeUnsupportedValue(t *testing.T) {
	rec := &record.Record{Namespaces: []string{"bad"}, Values: map[string]any{"bad": make(chan int)}}
	_, err := Encode("", rec)
	assert.Error(t, err)
}

func TestEncodeIgnoresValuesOutsideNamespaces(t *testing.T) {
	rec := &record.Record{Namespaces: []string{"a"}, Values: map[string]any{"a": 1, "stray": 2}}
	doc, err := Encode("", rec)
	require.NoError(t, err)
	_, ok := doc.Fields["stray"]
	assert.False(t, ok)
	assert.Equal(t, json.RawMessage("1"), doc.Fields["a"])
}

func TestKey(t *testing.T) {
	withRef := &record.Record{
		Sequence:   3,
		Namespaces: []string{fields.Headers},
		Values:     map[string]any{fields.Headers: fields.Headline{RecordReference: "ref-9"}},
	}
	assert.Equal(t, "ref-9", Key("daily", withRef))

	blank := &record.Record{
		Sequence:   3,
		Namespaces: []string{fields.Headers},
		Values:     map[string]any{fields.Headers: fields.Headline{}},
	}
	assert.Equal(t, "daily#3", Key("daily", blank))
	assert.Equal(t, "onix#0", Key("", &record.Record{}))
}
