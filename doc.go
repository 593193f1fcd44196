// Package onix extracts product records from ONIX for Books feeds.
//
// A feed is read once, as a stream of XML tokens. The boundary tracker
// resolves the byte span of the Header and of every Product by literal
// search in the backing text, and each sealed section is handed to the
// attached consumers in order, one at a time, while the parse continues.
// Product fragments are decoded independently, passed through the
// registered field plugins and imported into every configured sink.
//
// # Architecture
//
//   - pkg/feed: tokenizer, boundary tracker, notification bus and parser
//   - pkg/record: the Product pipeline (decode, extract, import)
//   - pkg/header: the Header consumer
//   - pkg/fields: ONIX 2.1 and 3.0 field plugins
//   - pkg/sinks: PostgreSQL, MySQL, MongoDB, Kafka, JSON lines, Avro and log sinks
//   - pkg/source: local, S3 and GCS feeds with decompression and charset handling
//   - internal/pipeline: the configured run
//
// # Quick Start
//
//	parser := feed.NewParser()
//	pipe := record.NewPipeline()
//	_ = pipe.RegisterField(fields.Headers, fields.HeadersPlugin{})
//	_ = pipe.AddSink(log.New("log", "daily", logger.Get()))
//	parser.Attach(header.NewConsumer(nil, nil)).Attach(pipe)
//	err := parser.Parse(ctx, data)
//
// Or from the command line:
//
//	onix inspect feeds/daily.xml.gz
//	onix run --config onix.yaml
//
// # Configuration
//
//	name: daily
//	source:
//	  uri: s3://publisher-drops/daily.xml.gz
//	  region: eu-west-1
//	plugins: [headers, identifiers, prices]
//	sinks:
//	  - type: postgres
//	    options:
//	      dsn: ${DATABASE_URL}
//	    retry:
//	      attempts: 5
//	  - type: jsonl
//	    options:
//	      path: archive/daily.jsonl.zst
package onix
