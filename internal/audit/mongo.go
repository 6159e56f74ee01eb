package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	logx "mailsched/pkg/logx"
)

const defaultConnectTimeout = 10 * time.Second

type mongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    logx.Logger
}

func openMongo(ctx context.Context, cfg Config, log logx.Logger) (Sink, error) {
	uri := strings.TrimSpace(cfg.MongoURI)
	if uri == "" {
		uri = DefaultMongoURI
	}
	dbName := strings.TrimSpace(cfg.MongoDatabase)
	if dbName == "" {
		dbName = DefaultMongoDatabase
	}
	collName := strings.TrimSpace(cfg.MongoCollection)
	if collName == "" {
		collName = DefaultMongoCollection
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("audit mongo connected", logx.String("db", dbName), logx.String("collection", collName))
	return &mongoSink{
		client: client,
		coll:   client.Database(dbName).Collection(collName),
		log:    log,
	}, nil
}

func (s *mongoSink) Record(ctx context.Context, e Entry) error {
	if s == nil || s.coll == nil {
		return ErrClosed
	}
	stamp(&e)
	_, err := s.coll.InsertOne(ctx, e)
	return err
}

func (s *mongoSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
