// Package sinks contains the record.Sink implementations and the helpers
// they share. Each sink lives in its own subpackage and registers a
// factory with the registry in init:
//
//	postgres  PostgreSQL upsert through a pgx pool
//	mysql     MySQL upsert through database/sql
//	mongodb   MongoDB replace-or-insert by sequence
//	kafka     one Kafka message per record through a sarama SyncProducer
//	jsonl     compressed JSON lines archive
//	avro      Avro object container file archive
//	log       structured log line per record
//
// WithRetry wraps any sink with exponential backoff on retryable errors.
package sinks
