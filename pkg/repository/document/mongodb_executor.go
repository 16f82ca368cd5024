package document

import (
	"context"
	"fmt"
	"time"

	mongostore "github.com/nimburion/docrepo/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FindOptions shapes a plain find before sort, skip and limit are composed onto its cursor.
type FindOptions struct {
	Projection bson.D
	Skip       int64
	Limit      int64
	// MaxTime bounds server-side execution; zero means no bound.
	MaxTime time.Duration
}

// FindOneOptions shapes a single-record lookup.
type FindOneOptions struct {
	Projection bson.D
	Sort       bson.D
}

// FindOneAndUpdateOptions shapes an atomic find-and-modify.
type FindOneAndUpdateOptions struct {
	Projection bson.D
	Sort       bson.D
	Upsert     bool
	// ReturnUpdated returns the document after the update instead of before it.
	ReturnUpdated bool
}

// CountOptions shapes a count query.
type CountOptions struct {
	Skip    int64
	Limit   int64
	MaxTime time.Duration
}

// MongoExecutor is the store contract the document repositories run on.
// Find and Aggregate are lazy; I/O happens when the returned cursor is read.
type MongoExecutor interface {
	FindOne(ctx context.Context, collection string, filter Filter, opts *FindOneOptions) (bson.M, error)
	FindOneAndUpdate(ctx context.Context, collection string, filter Filter, update interface{}, opts *FindOneAndUpdateOptions) (bson.M, error)
	Find(collection string, filter Filter, opts *FindOptions) Cursor
	Count(ctx context.Context, collection string, filter Filter, opts *CountOptions) (int64, error)
	Aggregate(collection string, pipeline mongo.Pipeline) PipelineCursor
}

// MongoDBExecutor adapts the store/mongodb adapter to the MongoExecutor contract.
type MongoDBExecutor struct {
	adapter *mongostore.Adapter
}

// NewMongoDBExecutor creates a new MongoDBExecutor instance.
func NewMongoDBExecutor(adapter *mongostore.Adapter) (*MongoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoDBExecutor{adapter: adapter}, nil
}

// FindOne finds a single document matching the filter, or nil when none does.
func (e *MongoDBExecutor) FindOne(ctx context.Context, collection string, filter Filter, opts *FindOneOptions) (bson.M, error) {
	o := options.FindOne()
	if opts != nil {
		if len(opts.Projection) > 0 {
			o.SetProjection(opts.Projection)
		}
		if len(opts.Sort) > 0 {
			o.SetSort(opts.Sort)
		}
	}
	return e.adapter.FindOne(ctx, collection, toBSON(filter), o)
}

// FindOneAndUpdate updates the first matching document, or returns nil when none matches.
func (e *MongoDBExecutor) FindOneAndUpdate(ctx context.Context, collection string, filter Filter, update interface{}, opts *FindOneAndUpdateOptions) (bson.M, error) {
	o := options.FindOneAndUpdate()
	if opts != nil {
		if len(opts.Projection) > 0 {
			o.SetProjection(opts.Projection)
		}
		if len(opts.Sort) > 0 {
			o.SetSort(opts.Sort)
		}
		if opts.Upsert {
			o.SetUpsert(true)
		}
		if opts.ReturnUpdated {
			o.SetReturnDocument(options.After)
		}
	}
	return e.adapter.FindOneAndUpdate(ctx, collection, toBSON(filter), update, o)
}

// Find returns a lazy cursor over the documents matching filter.
func (e *MongoDBExecutor) Find(collection string, filter Filter, opts *FindOptions) Cursor {
	c := &findCursor{adapter: e.adapter, collection: collection, filter: filter}
	if opts != nil {
		c.opts = *opts
	}
	return c
}

// Count counts the documents matching filter.
func (e *MongoDBExecutor) Count(ctx context.Context, collection string, filter Filter, opts *CountOptions) (int64, error) {
	o := options.Count()
	if opts != nil {
		if opts.Skip > 0 {
			o.SetSkip(opts.Skip)
		}
		if opts.Limit > 0 {
			o.SetLimit(opts.Limit)
		}
		if opts.MaxTime > 0 {
			o.SetMaxTime(opts.MaxTime)
		}
	}
	return e.adapter.CountDocuments(ctx, collection, toBSON(filter), o)
}

// Aggregate returns a lazy cursor over pipeline.
func (e *MongoDBExecutor) Aggregate(collection string, pipeline mongo.Pipeline) PipelineCursor {
	stages := make(mongo.Pipeline, len(pipeline))
	copy(stages, pipeline)
	return &pipelineCursor{adapter: e.adapter, collection: collection, pipeline: stages}
}

type findCursor struct {
	cursorState
	adapter    *mongostore.Adapter
	collection string
	filter     Filter
	opts       FindOptions
}

func (c *findCursor) Sort(spec bson.D) Cursor { c.addSort(spec); return c }
func (c *findCursor) Skip(n int64) Cursor     { c.setSkip(n); return c }
func (c *findCursor) Limit(n int64) Cursor    { c.setLimit(n); return c }

func (c *findCursor) All(ctx context.Context) ([]bson.M, error) {
	if err := c.consume(); err != nil {
		return nil, err
	}

	o := options.Find()
	if len(c.opts.Projection) > 0 {
		o.SetProjection(c.opts.Projection)
	}
	if len(c.sort) > 0 {
		o.SetSort(c.sort)
	}
	if skip := firstPositive(c.skip, c.opts.Skip); skip > 0 {
		o.SetSkip(skip)
	}
	if limit := firstPositive(c.limit, c.opts.Limit); limit > 0 {
		o.SetLimit(limit)
	}
	if c.opts.MaxTime > 0 {
		o.SetMaxTime(c.opts.MaxTime)
	}
	return c.adapter.FindAll(ctx, c.collection, toBSON(c.filter), o)
}

type pipelineCursor struct {
	cursorState
	adapter    *mongostore.Adapter
	collection string
	pipeline   mongo.Pipeline
}

func (c *pipelineCursor) Sort(spec bson.D) Cursor { c.addSort(spec); return c }
func (c *pipelineCursor) Skip(n int64) Cursor     { c.setSkip(n); return c }
func (c *pipelineCursor) Limit(n int64) Cursor    { c.setLimit(n); return c }

func (c *pipelineCursor) Match(filter Filter) PipelineCursor {
	if c.consumed {
		c.err = ErrCursorConsumed
		return c
	}
	c.pipeline = append(c.pipeline, bson.D{{Key: "$match", Value: toBSON(filter)}})
	return c
}

func (c *pipelineCursor) All(ctx context.Context) ([]bson.M, error) {
	if err := c.consume(); err != nil {
		return nil, err
	}
	return c.adapter.AggregateAll(ctx, c.collection, c.stages())
}

func (c *pipelineCursor) Count(ctx context.Context) (int64, error) {
	if err := c.consume(); err != nil {
		return 0, err
	}
	groups, err := c.adapter.AggregateAll(ctx, c.collection, append(c.stages(), countStage()))
	if err != nil {
		return 0, err
	}
	return groupCount(groups)
}

// stages appends the recorded sort, skip and limit to the pipeline, in that order.
func (c *pipelineCursor) stages() mongo.Pipeline {
	return withPaging(c.pipeline, c.sort, c.skip, c.limit)
}

func withPaging(pipeline mongo.Pipeline, sort bson.D, skip, limit int64) mongo.Pipeline {
	stages := make(mongo.Pipeline, 0, len(pipeline)+3)
	stages = append(stages, pipeline...)
	if len(sort) > 0 {
		stages = append(stages, bson.D{{Key: "$sort", Value: sort}})
	}
	if skip > 0 {
		stages = append(stages, bson.D{{Key: "$skip", Value: skip}})
	}
	if limit > 0 {
		stages = append(stages, bson.D{{Key: "$limit", Value: limit}})
	}
	return stages
}

func countStage() bson.D {
	return bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: nil},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}
}

// groupCount reads the count of the single group produced by countStage.
func groupCount(groups []bson.M) (int64, error) {
	if len(groups) == 0 {
		return 0, nil
	}
	switch n := groups[0]["count"].(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected count value %v (%T)", n, n)
	}
}

func firstPositive(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// toBSON converts a filter for the driver, which rejects nil documents.
func toBSON(f Filter) bson.M {
	if f == nil {
		return bson.M{}
	}
	return bson.M(f)
}
