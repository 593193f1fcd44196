// Package feed extracts Header and Product sections from an ONIX feed
// without building a document tree.
//
// # Overview
//
// A Tokenizer walks the feed and reports element open/close events by name
// only. The Tracker turns the events for the two tracked names, "Header"
// and "Product", into byte Spans by searching the backing text for the
// literal markers (<Header>, </Header>, <Product>, </Product>) and slices
// each sealed span into a Fragment. The Parser hands every sealed section
// to a Bus, which delivers it synchronously to the attached Consumers in
// attachment order.
//
//	p := feed.NewParser(feed.WithLogger(log))
//	p.Attach(headerConsumer).Attach(recordPipeline)
//	if err := p.Parse(ctx, data); err != nil {
//	    // fatal: malformed document or cancelled context
//	}
//	for _, rerr := range p.RecordErrors() {
//	    // per-record failures reported by consumers
//	}
//
// # Span bookkeeping
//
// Product span i starts at the first <Product> at or after the end of span
// i-1 (0 for the first one) and ends just past the matching </Product>.
// A span is sealed exactly once and never revisited, so spans are
// sequential and non-overlapping. The Header close marker is searched from
// the Header's own start offset.
//
// Marker matching is exact and case-sensitive. A tracked tag written with
// attributes, extra whitespace or as an empty element (<Product id="1">,
// <Product >, <Product/>) is reported as a malformed document instead of
// being matched against a later bare marker. Tags with a namespace prefix
// are reported by the tokenizer under their qualified name (o:Product) and
// are therefore not tracked.
//
// # Concurrency
//
// Parser, Tracker and Bus are single-threaded: every close event runs
// Notify, and every consumer, before the tokenizer reads the next token.
// None of them is safe for concurrent use.
package feed
