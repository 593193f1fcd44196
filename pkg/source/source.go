// Package source retrieves a feed document and prepares it for parsing:
// local files are memory-mapped, s3:// and gs:// objects are downloaded,
// compressed feeds are inflated and non UTF-8 feeds are transcoded.
package source

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/compression"
	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/feed"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/metrics"
	"github.com/ajitpratap0/onix/pkg/mmap"
)

// Supported URI schemes.
const (
	SchemeFile = "file"
	SchemeS3   = "s3"
	SchemeGCS  = "gs"
)

// Fetcher downloads a remote object.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// Feed is a document ready for feed.Parser.Parse.
type Feed struct {
	URI         string
	Name        string
	Compression compression.Algorithm
	Charset     string
	// StoredBytes is the size before decompression.
	StoredBytes int

	data    []byte
	mapping *mmap.Mapping
}

// Bytes returns the document. It is invalid after Close.
func (f *Feed) Bytes() []byte { return f.data }

// Close releases the memory mapping, if any.
func (f *Feed) Close() error {
	f.data = nil
	if f.mapping != nil {
		return f.mapping.Close()
	}
	return nil
}

// Option configures Open.
type Option func(*opener)

// WithFetcher sets the fetcher used for scheme.
func WithFetcher(scheme string, f Fetcher) Option {
	return func(o *opener) { o.fetchers[scheme] = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *opener) { o.logger = l }
}

type opener struct {
	cfg      config.SourceConfig
	fetchers map[string]Fetcher
	logger   *zap.Logger
}

// Open loads the feed named by cfg.URI.
func Open(ctx context.Context, cfg config.SourceConfig, opts ...Option) (*Feed, error) {
	o := &opener{cfg: cfg, fetchers: map[string]Fetcher{}}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	o.logger = o.logger.With(zap.String("component", "source"))

	timer := metrics.NewTimer("fetch")
	defer timer.ObserveStage()

	scheme, bucket, key, err := ParseURI(cfg.URI)
	if err != nil {
		return nil, err
	}

	alg := compression.FromExtension(key)
	if cfg.Compression != "" && cfg.Compression != "auto" {
		if alg, err = compression.Parse(cfg.Compression); err != nil {
			return nil, err
		}
	}

	f := &Feed{URI: cfg.URI, Name: path.Base(key), Compression: alg}
	var raw []byte

	switch scheme {
	case SchemeFile:
		m, err := mmap.Open(key)
		if err != nil {
			return nil, err
		}
		f.mapping = m
		raw = m.Bytes()
	default:
		fetcher, err := o.fetcher(ctx, scheme)
		if err != nil {
			return nil, err
		}
		raw, err = fetcher.Fetch(ctx, bucket, key)
		if c, ok := fetcher.(io.Closer); ok && o.fetchers[scheme] == nil {
			_ = c.Close()
		}
		if err != nil {
			return nil, err
		}
	}
	f.StoredBytes = len(raw)

	data, err := compression.Decompress(alg, raw)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	data, name, err := feed.ToUTF8(data, cfg.Charset)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	f.Charset = name
	f.data = data

	// the mapping is no longer referenced once the bytes were copied
	if f.mapping != nil && (alg != compression.None || name != "utf-8") {
		if err := f.mapping.Close(); err != nil {
			o.logger.Warn("failed to release mapping", zap.Error(err))
		}
		f.mapping = nil
	}

	o.logger.Info("feed loaded",
		zap.String("uri", cfg.URI),
		zap.String("compression", string(alg)),
		zap.String("charset", name),
		zap.Int("stored_bytes", f.StoredBytes),
		zap.Int("bytes", len(data)))
	return f, nil
}

func (o *opener) fetcher(ctx context.Context, scheme string) (Fetcher, error) {
	if f, ok := o.fetchers[scheme]; ok {
		return f, nil
	}
	switch scheme {
	case SchemeS3:
		return NewS3Fetcher(ctx, o.cfg.Region, o.cfg.Endpoint)
	case SchemeGCS:
		return NewGCSFetcher(ctx, o.cfg.CredentialsFile)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported source scheme %q", scheme).
			WithDetail("field", "source.uri")
	}
}

// ParseURI splits a source URI. Plain paths are file URIs with an empty
// bucket.
func ParseURI(uri string) (scheme, bucket, key string, err error) {
	if uri == "" {
		return "", "", "", errors.New(errors.ErrorTypeConfig, "source uri is required").
			WithDetail("field", "source.uri")
	}
	if !strings.Contains(uri, "://") {
		return SchemeFile, "", uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid source uri").
			WithDetail("field", "source.uri")
	}
	switch u.Scheme {
	case SchemeFile:
		return SchemeFile, "", u.Path, nil
	case SchemeS3, SchemeGCS:
		key = strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return "", "", "", errors.Newf(errors.ErrorTypeConfig, "source uri %q needs a bucket and a key", uri).
				WithDetail("field", "source.uri")
		}
		return u.Scheme, u.Host, key, nil
	default:
		return "", "", "", errors.Newf(errors.ErrorTypeConfig, "unsupported source scheme %q", u.Scheme).
			WithDetail("field", "source.uri")
	}
}

func readAll(r io.Reader, sizeHint int64) ([]byte, error) {
	buf := make([]byte, 0, max(sizeHint, 512))
	for {
		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
	}
}
