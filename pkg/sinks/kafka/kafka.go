// Package kafka provides a sink that publishes one message per record.
// The message key is the record key and the value is the JSON document.
package kafka

import (
	"context"
	"crypto/tls"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
)

// Type is the sink type name.
const Type = "kafka"

// DefaultTopic is used when the topic option is empty.
const DefaultTopic = "onix-products"

func init() {
	if err := registry.RegisterSink(Type, Open); err != nil {
		panic(err)
	}
}

type producer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// Sink publishes records to a topic.
type Sink struct {
	name     string
	feed     string
	topic    string
	producer producer
	logger   *zap.Logger
}

// Open connects a SyncProducer. Options:
//
//	brokers         comma separated broker list (required)
//	topic           default onix-products
//	acks            all, 1 or 0, default all
//	compression     none, gzip, snappy, lz4 or zstd
//	retries         producer retries, default 3
//	client_id       default onix
//	tls             enable TLS
//	sasl_mechanism  PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512
//	sasl_username
//	sasl_password
func Open(_ context.Context, cfg config.SinkConfig) (record.Sink, error) {
	brokers, err := cfg.RequireOption("brokers")
	if err != nil {
		return nil, err
	}
	scfg, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	p, err := sarama.NewSyncProducer(splitBrokers(brokers), scfg)
	if err != nil {
		return nil, classify(err, "failed to create producer").WithDetail("sink", cfg.Name)
	}

	s := New(cfg.Name, cfg.Option("feed", ""), cfg.Option("topic", DefaultTopic), p, logger.Get())
	s.logger.Info("kafka sink ready", zap.String("topic", s.topic), zap.String("brokers", brokers))
	return s, nil
}

// New creates a sink over an existing producer.
func New(name, feed, topic string, p producer, l *zap.Logger) *Sink {
	if name == "" {
		name = Type
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Sink{name: name, feed: feed, topic: topic, producer: p, logger: l.With(zap.String("sink", name))}
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func buildSaramaConfig(cfg config.SinkConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.Option("client_id", "onix")

	switch cfg.Option("acks", "all") {
	case "all", "-1":
		sc.Producer.RequiredAcks = sarama.WaitForAll
	case "1":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown acks value %q", cfg.Option("acks", "")).
			WithDetail("sink", cfg.Name)
	}

	retries, err := cfg.OptionInt("retries", 3)
	if err != nil {
		return nil, err
	}
	sc.Producer.Retry.Max = retries
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Timeout = 10 * time.Second

	switch cfg.Option("compression", "none") {
	case "none":
		sc.Producer.Compression = sarama.CompressionNone
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
		sc.Version = sarama.V2_1_0_0
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown compression %q", cfg.Option("compression", "")).
			WithDetail("sink", cfg.Name)
	}

	useTLS, err := cfg.OptionBool("tls", false)
	if err != nil {
		return nil, err
	}
	if useTLS {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if mech := cfg.Option("sasl_mechanism", ""); mech != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = cfg.Option("sasl_username", "")
		sc.Net.SASL.Password = cfg.Option("sasl_password", "")
		switch mech {
		case "PLAIN":
			sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case "SCRAM-SHA-256":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			sc.Net.SASL.SCRAMClientGeneratorFunc = scramGenerator(scram.SHA256)
		case "SCRAM-SHA-512":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			sc.Net.SASL.SCRAMClientGeneratorFunc = scramGenerator(scram.SHA512)
		default:
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown SASL mechanism %q", mech).
				WithDetail("sink", cfg.Name)
		}
	}

	if err := sc.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid producer configuration").
			WithDetail("sink", cfg.Name)
	}
	return sc, nil
}

// Name implements record.Sink.
func (s *Sink) Name() string { return s.name }

// Import implements record.Sink.
func (s *Sink) Import(_ context.Context, r *record.Record) error {
	doc, err := sinks.Encode(s.feed, r)
	if err != nil {
		return err
	}
	value, err := doc.Marshal()
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(doc.Key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("feed"), Value: []byte(doc.Feed)},
			{Key: []byte("sequence"), Value: []byte(strconv.Itoa(doc.Sequence))},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		return classify(err, "failed to publish record").WithDetail("sequence", r.Sequence)
	}
	s.logger.Debug("record published",
		zap.Int("sequence", r.Sequence),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close implements record.Closer.
func (s *Sink) Close(context.Context) error {
	if err := s.producer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close producer")
	}
	return nil
}

func classify(err error, msg string) *errors.Error {
	switch {
	case errors.Is(err, sarama.ErrRequestTimedOut):
		return errors.Wrap(err, errors.ErrorTypeTimeout, msg)
	case errors.Is(err, sarama.ErrOutOfBrokers),
		errors.Is(err, sarama.ErrNotConnected),
		errors.Is(err, sarama.ErrLeaderNotAvailable),
		errors.Is(err, sarama.ErrNotLeaderForPartition):
		return errors.Wrap(err, errors.ErrorTypeConnection, msg)
	}
	return errors.Wrap(err, errors.ErrorTypeQuery, msg)
}
