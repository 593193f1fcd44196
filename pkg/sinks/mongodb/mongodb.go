// Package mongodb provides a sink that stores one document per record,
// replacing any earlier document with the same record key.
package mongodb

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/record"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/sinks"
)

// Type is the sink type name.
const Type = "mongodb"

// Defaults for the database and collection options.
const (
	DefaultDatabase   = "onix"
	DefaultCollection = "products"
)

func init() {
	if err := registry.RegisterSink(Type, Open); err != nil {
		panic(err)
	}
}

type collection interface {
	ReplaceOne(ctx context.Context, filter, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

// Sink writes records to a MongoDB collection.
type Sink struct {
	name   string
	feed   string
	coll   collection
	client *mongo.Client
	logger *zap.Logger
}

// Open connects using cfg. Options:
//
//	uri         connection string (required)
//	database    default onix
//	collection  default products
//	feed        feed name stored with each document
func Open(ctx context.Context, cfg config.SinkConfig) (record.Sink, error) {
	uri, err := cfg.RequireOption("uri")
	if err != nil {
		return nil, err
	}

	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create MongoDB client").
			WithDetail("sink", cfg.Name)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, classify(err, "failed to ping MongoDB")
	}

	coll := client.Database(cfg.Option("database", DefaultDatabase)).
		Collection(cfg.Option("collection", DefaultCollection))
	s := New(cfg.Name, cfg.Option("feed", ""), coll, logger.Get())
	s.client = client
	s.logger.Info("mongodb sink ready",
		zap.String("database", coll.Database().Name()),
		zap.String("collection", coll.Name()))
	return s, nil
}

// New creates a sink over an existing collection.
func New(name, feed string, coll collection, l *zap.Logger) *Sink {
	if name == "" {
		name = Type
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Sink{name: name, feed: feed, coll: coll, logger: l.With(zap.String("sink", name))}
}

// Name implements record.Sink.
func (s *Sink) Name() string { return s.name }

// Import implements record.Sink.
func (s *Sink) Import(ctx context.Context, r *record.Record) error {
	doc, err := s.document(r)
	if err != nil {
		return err
	}
	_, err = s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc[0].Value}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return classify(err, "failed to replace document").WithDetail("sequence", r.Sequence)
	}
	return nil
}

// document builds the stored form of r. The namespace values go through
// JSON so that plugins need no bson tags.
func (s *Sink) document(r *record.Record) (bson.D, error) {
	enc, err := sinks.Encode(s.feed, r)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(enc.Fields)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode record fields").
			WithDetail("sequence", r.Sequence)
	}
	var values bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &values); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to convert record fields").
			WithDetail("sequence", r.Sequence)
	}
	return bson.D{
		{Key: "_id", Value: enc.Key},
		{Key: "feed", Value: enc.Feed},
		{Key: "sequence", Value: enc.Sequence},
		{Key: "fields", Value: values},
		{Key: "imported_at", Value: time.Now().UTC()},
	}, nil
}

// Close implements record.Closer.
func (s *Sink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to disconnect from MongoDB")
	}
	return nil
}

func classify(err error, msg string) *errors.Error {
	switch {
	case mongo.IsTimeout(err):
		return errors.Wrap(err, errors.ErrorTypeTimeout, msg)
	case mongo.IsNetworkError(err):
		return errors.Wrap(err, errors.ErrorTypeConnection, msg)
	}
	return errors.Wrap(err, errors.ErrorTypeQuery, msg)
}
