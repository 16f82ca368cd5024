package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimburion/docrepo/pkg/observability/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ErrClosed is returned by operations on a closed adapter.
var ErrClosed = errors.New("mongodb adapter is closed")

// Adapter provides MongoDB connectivity and the raw collection calls used by repositories.
type Adapter struct {
	client   *mongo.Client
	database string
	logger   logger.Logger
	timeout  time.Duration
	mu       sync.RWMutex
	closed   bool
}

// Config holds MongoDB adapter configuration.
type Config struct {
	URL              string
	Database         string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// NewAdapter connects to MongoDB and verifies connectivity with a ping.
// It does not create collections or indexes.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mongodb URL is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongodb database is required")
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("MongoDB connection established", "database", cfg.Database)
	return &Adapter{
		client:   client,
		database: cfg.Database,
		logger:   log,
		timeout:  cfg.OperationTimeout,
	}, nil
}

func (a *Adapter) Client() *mongo.Client {
	return a.client
}

func (a *Adapter) Database() *mongo.Database {
	return a.client.Database(a.database)
}

func (a *Adapter) Collection(name string) *mongo.Collection {
	return a.Database().Collection(name)
}

func (a *Adapter) Ping(ctx context.Context) error {
	if a.isClosed() {
		return ErrClosed
	}
	return a.client.Ping(ctx, readpref.Primary())
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("MongoDB health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	return nil
}

// InsertMany inserts documents into the collection. Used to seed collections.
func (a *Adapter) InsertMany(ctx context.Context, collection string, docs []interface{}) (*mongo.InsertManyResult, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).InsertMany(opCtx, docs)
}

// FindOne decodes the first document matching filter into a bson.M.
// It returns (nil, nil) when nothing matches.
func (a *Adapter) FindOne(ctx context.Context, collection string, filter interface{}, opts *options.FindOneOptions) (bson.M, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	out := bson.M{}
	err := a.Collection(collection).FindOne(opCtx, filter, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindOneAndUpdate atomically updates the first matching document.
// It returns (nil, nil) when nothing matches and no upsert happened.
func (a *Adapter) FindOneAndUpdate(ctx context.Context, collection string, filter, update interface{}, opts *options.FindOneAndUpdateOptions) (bson.M, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	out := bson.M{}
	err := a.Collection(collection).FindOneAndUpdate(opCtx, filter, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindAll runs a find and drains the resulting cursor.
func (a *Adapter) FindAll(ctx context.Context, collection string, filter interface{}, opts *options.FindOptions) ([]bson.M, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	cur, err := a.Collection(collection).Find(opCtx, filter, opts)
	if err != nil {
		return nil, err
	}
	docs := []bson.M{}
	if err := cur.All(opCtx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// AggregateAll runs an aggregation pipeline and drains the resulting cursor.
func (a *Adapter) AggregateAll(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	cur, err := a.Collection(collection).Aggregate(opCtx, pipeline)
	if err != nil {
		return nil, err
	}
	docs := []bson.M{}
	if err := cur.All(opCtx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// CountDocuments counts the documents matching filter.
func (a *Adapter) CountDocuments(ctx context.Context, collection string, filter interface{}, opts *options.CountOptions) (int64, error) {
	if a.isClosed() {
		return 0, ErrClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).CountDocuments(opCtx, filter, opts)
}

// DropCollection removes a collection. Used by tests and the seed command.
func (a *Adapter) DropCollection(ctx context.Context, collection string) error {
	if a.isClosed() {
		return ErrClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).Drop(opCtx)
}

func (a *Adapter) isClosed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
