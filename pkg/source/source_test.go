package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/onix/pkg/compression"
	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
)

const doc = `<?xml version="1.0" encoding="UTF-8"?><ONIXMessage><Product><A/></Product></ONIXMessage>`

func compress(t *testing.T, alg compression.Algorithm, data []byte) []byte {
	var buf bytes.Buffer
	w, err := compression.NewWriter(alg, &buf, compression.Default)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	f, err := Open(context.Background(), config.SourceConfig{URI: path}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, doc, string(f.Bytes()))
	assert.Equal(t, "feed.xml", f.Name)
	assert.Equal(t, compression.None, f.Compression)
	assert.Equal(t, len(doc), f.StoredBytes)
	require.NoError(t, f.Close())
}

func TestOpenCompressedFileByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml.gz")
	require.NoError(t, os.WriteFile(path, compress(t, compression.Gzip, []byte(doc)), 0o600))

	f, err := Open(context.Background(), config.SourceConfig{URI: "file://" + path}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, compression.Gzip, f.Compression)
	assert.Equal(t, doc, string(f.Bytes()))
}

func TestOpenCompressionOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.bin")
	require.NoError(t, os.WriteFile(path, compress(t, compression.Zstd, []byte(doc)), 0o600))

	f, err := Open(context.Background(), config.SourceConfig{URI: path, Compression: "zstd"}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, doc, string(f.Bytes()))
}

func TestOpenLatin1File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(path, latin1Feed(), 0o600))

	f, err := Open(context.Background(), config.SourceConfig{URI: path}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "windows-1252", f.Charset)
	assert.Contains(t, string(f.Bytes()), "Café")
}

type fakeFetcher struct {
	data        map[string][]byte
	bucket, key string
}

func (f *fakeFetcher) Fetch(_ context.Context, bucket, key string) ([]byte, error) {
	f.bucket, f.key = bucket, key
	data, ok := f.data[key]
	if !ok {
		return nil, errors.New(errors.ErrorTypeNotFound, "no such key")
	}
	return data, nil
}

func TestOpenRemoteThroughFetcher(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{
		"drops/2024/feed.xml.zst": compress(t, compression.Zstd, []byte(doc)),
	}}

	f, err := Open(context.Background(),
		config.SourceConfig{URI: "gs://publisher/drops/2024/feed.xml.zst"},
		WithFetcher(SchemeGCS, fetcher),
		WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, "publisher", fetcher.bucket)
	assert.Equal(t, doc, string(f.Bytes()))
	assert.Equal(t, "feed.xml.zst", f.Name)

	_, err = Open(context.Background(),
		config.SourceConfig{URI: "gs://publisher/missing.xml"},
		WithFetcher(SchemeGCS, fetcher),
		WithLogger(zaptest.NewLogger(t)))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri, scheme, bucket, key string
		wantErr                  bool
	}{
		{uri: "feeds/a.xml", scheme: SchemeFile, key: "feeds/a.xml"},
		{uri: "file:///tmp/a.xml", scheme: SchemeFile, key: "/tmp/a.xml"},
		{uri: "s3://bucket/dir/a.xml", scheme: SchemeS3, bucket: "bucket", key: "dir/a.xml"},
		{uri: "gs://bucket/a.xml.gz", scheme: SchemeGCS, bucket: "bucket", key: "a.xml.gz"},
		{uri: "s3://bucket", wantErr: true},
		{uri: "ftp://host/a.xml", wantErr: true},
		{uri: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			scheme, bucket, key, err := ParseURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, scheme)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func TestS3FetcherDownloadsObject(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"feeds/daily.xml": []byte(doc)}}
	data, err := NewS3FetcherFromClient(client).Fetch(context.Background(), "feeds", "daily.xml")
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))
}

func TestReadAll(t *testing.T) {
	data, err := readAll(bytes.NewReader(bytes.Repeat([]byte("x"), 2000)), 10)
	require.NoError(t, err)
	assert.Len(t, data, 2000)
}

func latin1Feed() []byte {
	doc := []byte(`<?xml version="1.0" encoding="ISO-8859-1"?><ONIXMessage><Product><TitleText>Caf`)
	doc = append(doc, 0xe9) // é
	return append(doc, []byte(`</TitleText></Product></ONIXMessage>`)...)
}
