package feed

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ajitpratap0/onix/pkg/errors"
)

var (
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}
	encodingRef = regexp.MustCompile(`^(\s*<\?xml[^>]*?\bencoding\s*=\s*)(["'])([A-Za-z0-9._:-]+)(["'])`)
)

// DeclaredEncoding returns the encoding named in the XML declaration, or ""
// when there is none.
func DeclaredEncoding(data []byte) string {
	head := bytes.TrimPrefix(data, utf8BOM)
	if len(head) > 512 {
		head = head[:512]
	}
	m := encodingRef.FindSubmatch(head)
	if m == nil {
		return ""
	}
	return string(m[3])
}

// ToUTF8 transcodes data to UTF-8 and rewrites its XML declaration
// accordingly. label overrides the declared encoding. Documents already in
// UTF-8 are returned unchanged along with the name "utf-8".
func ToUTF8(data []byte, label string) ([]byte, string, error) {
	if label == "" {
		label = DeclaredEncoding(data)
	}
	if label == "" || isUTF8(label) {
		return bytes.TrimPrefix(data, utf8BOM), "utf-8", nil
	}

	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, "", errors.Newf(errors.ErrorTypeConfig, "unknown charset %q", label).
			WithDetail("field", "source.charset")
	}
	if name == "utf-8" {
		return bytes.TrimPrefix(data, utf8BOM), name, nil
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrorTypeMalformedDocument, "failed to transcode feed").
			WithDetail("charset", name)
	}
	if loc := encodingRef.FindSubmatchIndex(out); loc != nil {
		// replace only the encoding name, keeping the quotes
		rewritten := make([]byte, 0, len(out)+8)
		rewritten = append(rewritten, out[:loc[6]]...)
		rewritten = append(rewritten, "UTF-8"...)
		rewritten = append(rewritten, out[loc[7]:]...)
		out = rewritten
	}
	return out, name, nil
}

func isUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
