package feed

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/metrics"
)

// RecordError is a per-record failure reported by a consumer.
type RecordError struct {
	Tag      string
	Sequence int
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Tag, e.Sequence, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Parser drives a Tokenizer over a document, tracks section boundaries and
// notifies the attached consumers once per sealed section.
type Parser struct {
	tokenizer Tokenizer
	bus       *Bus
	tracker   *Tracker
	logger    *zap.Logger
	failFast  bool

	recordErrors []*RecordError
}

// Option configures a Parser.
type Option func(*Parser)

// WithTokenizer replaces the default XMLTokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(p *Parser) { p.tokenizer = t }
}

// WithLogger sets the parser logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// WithFailFast makes the first consumer error abort the parse.
func WithFailFast(failFast bool) Option {
	return func(p *Parser) { p.failFast = failFast }
}

// WithBus makes the parser notify an existing bus.
func WithBus(b *Bus) Option {
	return func(p *Parser) { p.bus = b }
}

// NewParser creates a parser with an empty bus.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		tokenizer: NewXMLTokenizer(),
		bus:       NewBus(),
		tracker:   NewTracker(nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get()
	}
	p.logger = p.logger.With(zap.String("component", "feed_parser"))
	return p
}

// Attach registers a consumer on the parser's bus.
func (p *Parser) Attach(c Consumer) *Parser {
	p.bus.Attach(c)
	return p
}

// Detach removes a consumer from the parser's bus.
func (p *Parser) Detach(c Consumer) *Parser {
	p.bus.Detach(c)
	return p
}

// Bus returns the bus the parser notifies.
func (p *Parser) Bus() *Bus { return p.bus }

// Parse runs the tokenizer over text to completion. It returns an error of
// type errors.ErrorTypeMalformedDocument on a structural failure, the
// context error on cancellation, or the first RecordError when fail-fast is
// enabled. Per-record failures are otherwise collected in RecordErrors.
//
// A document declaring another encoding is transcoded to UTF-8 first, so
// spans index the UTF-8 text and every fragment decodes on its own. A UTF-8
// text is used as is and must not be modified until Parse returns. Span
// history is kept until the next Parse.
func (p *Parser) Parse(ctx context.Context, text []byte) error {
	p.recordErrors = nil

	text, enc, err := ToUTF8(text, "")
	if err != nil {
		if !errors.IsType(err, errors.ErrorTypeMalformedDocument) {
			err = errors.Wrap(err, errors.ErrorTypeMalformedDocument, "unsupported document encoding").
				WithDetail("offset", 0)
		}
		p.tracker = NewTracker(nil)
		p.logger.Error("malformed document", zap.Error(err))
		return err
	}
	if enc != "utf-8" {
		p.logger.Debug("document transcoded", zap.String("charset", enc))
	}
	p.tracker = NewTracker(text)

	err = p.tokenizer.Tokenize(ctx, bytes.NewReader(text), &run{ctx: ctx, p: p})
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeMalformedDocument) {
			tag, _ := errors.Detail(err, "tag")
			offset, _ := errors.Detail(err, "offset")
			p.logger.Error("malformed document",
				zap.Any("tag", tag),
				zap.Any("offset", offset),
				zap.Error(err))
		}
		return err
	}

	p.logger.Debug("parse completed",
		zap.Int("products", p.tracker.ProductCount()),
		zap.Int("record_errors", len(p.recordErrors)))
	return nil
}

// run adapts the parser to the Handler interface for one Parse call.
type run struct {
	ctx context.Context
	p   *Parser
}

func (r *run) OnOpen(name string) error {
	return r.p.tracker.OnOpen(name)
}

func (r *run) OnClose(name string) error {
	sealed, err := r.p.tracker.OnClose(name)
	if err != nil || !sealed {
		return err
	}
	return r.p.notify(r.ctx)
}

func (p *Parser) notify(ctx context.Context) error {
	n := p.tracker.Current()
	metrics.SectionsExtracted.WithLabelValues(n.Tag).Inc()
	metrics.FragmentBytes.WithLabelValues(n.Tag).Observe(float64(n.Span.Len()))

	p.logger.Debug("section sealed",
		zap.String("tag", n.Tag),
		zap.Int("sequence", n.Sequence),
		zap.Int("start", n.Span.Start),
		zap.Int("end", n.Span.End))

	err := p.bus.Notify(ctx, n)
	if err == nil {
		return nil
	}

	rerr := &RecordError{Tag: n.Tag, Sequence: n.Sequence, Err: err}
	p.recordErrors = append(p.recordErrors, rerr)
	p.logger.Warn("record failed",
		zap.String("tag", n.Tag),
		zap.Int("sequence", n.Sequence),
		zap.Error(err))
	if p.failFast {
		return rerr
	}
	return nil
}

// ProductCount returns the number of Product sections sealed so far.
func (p *Parser) ProductCount() int { return p.tracker.ProductCount() }

// ProductSpans returns the Product span sequence.
func (p *Parser) ProductSpans() []Span { return p.tracker.ProductSpans() }

// HeaderSpan returns the sealed Header span, if any.
func (p *Parser) HeaderSpan() (Span, bool) { return p.tracker.HeaderSpan() }

// CurrentTag returns the tag of the last notification.
func (p *Parser) CurrentTag() string { return p.tracker.CurrentTag() }

// CurrentFragment returns the fragment of the last notification.
func (p *Parser) CurrentFragment() string { return p.tracker.CurrentFragment() }

// RecordErrors returns the per-record failures of the last Parse.
func (p *Parser) RecordErrors() []*RecordError {
	out := make([]*RecordError, len(p.recordErrors))
	copy(out, p.recordErrors)
	return out
}
