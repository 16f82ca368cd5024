package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/docrepo/pkg/observability/logger"
	"github.com/nimburion/docrepo/pkg/observability/metrics"
	"github.com/nimburion/docrepo/pkg/observability/tracing"
	"github.com/nimburion/docrepo/pkg/resilience"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// Operation names used in errors, logs, metrics and spans.
const (
	OpFindOne          = "find_one"
	OpFindOneAndUpdate = "find_one_and_update"
	OpFind             = "find"
	OpCount            = "count"
	OpPaginate         = "paginate"
	OpPage             = "page"
	OpTotal            = "total"
)

// Query modes reported in logs.
const (
	modePlain    = "plain"
	modeText     = "text"
	modePipeline = "pipeline"
)

// Page is one page of results plus the number of records matching the query
// when skip and limit are ignored.
type Page[E any] struct {
	Data  []E   `json:"data"`
	Total int64 `json:"total"`
}

// CollectionOption configures a Collection.
type CollectionOption func(*collectionConfig)

type collectionConfig struct {
	searchable         []string
	log                logger.Logger
	metrics            *metrics.StoreMetrics
	hydrateConcurrency int
	breaker            *resilience.CircuitBreaker
}

// WithSearchableFields sets the fields free-text filters search in.
func WithSearchableFields(fields ...string) CollectionOption {
	return func(cfg *collectionConfig) {
		cfg.searchable = append([]string(nil), fields...)
	}
}

// WithLogger sets the collection logger.
func WithLogger(log logger.Logger) CollectionOption {
	return func(cfg *collectionConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

// WithMetrics records query durations and outcomes into m.
func WithMetrics(m *metrics.StoreMetrics) CollectionOption {
	return func(cfg *collectionConfig) {
		cfg.metrics = m
	}
}

// WithHydrateConcurrency bounds how many records are hydrated at once. Values below 2 hydrate sequentially.
func WithHydrateConcurrency(n int) CollectionOption {
	return func(cfg *collectionConfig) {
		cfg.hydrateConcurrency = n
	}
}

// WithCircuitBreaker routes every operation through cb. Share one breaker
// between the collections of a store; see NewStoreCircuitBreaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) CollectionOption {
	return func(cfg *collectionConfig) {
		cfg.breaker = cb
	}
}

// NewStoreCircuitBreaker creates a breaker that only counts store faults.
// Malformed parameters, invalid identifiers and caller cancellation pass through.
func NewStoreCircuitBreaker(maxFailures int, openTimeout time.Duration) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(maxFailures, openTimeout, resilience.WithFailurePredicate(isStoreFault))
}

func isStoreFault(err error) bool {
	return errors.Is(err, ErrStoreQueryFailed) && !errors.Is(err, context.Canceled)
}

// Collection is a typed repository over one named collection. It shares
// query building, search, sorting, pagination and hydration across entity types.
type Collection[T any] struct {
	name               string
	executor           MongoExecutor
	hydrator           Hydrator[T]
	searchable         []string
	log                logger.Logger
	metrics            *metrics.StoreMetrics
	hydrateConcurrency int
	breaker            *resilience.CircuitBreaker
}

// NewCollection creates a repository for the named collection.
func NewCollection[T any](executor MongoExecutor, name string, hydrator Hydrator[T], opts ...CollectionOption) (*Collection[T], error) {
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if hydrator == nil {
		return nil, fmt.Errorf("hydrator is required")
	}

	cfg := collectionConfig{log: logger.NewNopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Collection[T]{
		name:               name,
		executor:           executor,
		hydrator:           hydrator,
		searchable:         cfg.searchable,
		log:                cfg.log.With("collection", name),
		metrics:            cfg.metrics,
		hydrateConcurrency: cfg.hydrateConcurrency,
		breaker:            cfg.breaker,
	}, nil
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// SearchableFields returns a copy of the configured searchable fields.
func (c *Collection[T]) SearchableFields() []string {
	return append([]string(nil), c.searchable...)
}

// FindOne returns the first record matching filter, hydrated. When nothing
// matches it returns the hydrator's default instance and no error.
// A string _id is converted to an ObjectID first.
func (c *Collection[T]) FindOne(ctx context.Context, filter Filter, opts *FindOneOptions) (T, error) {
	var out T
	normalized, err := NormalizeID(filter)
	if err != nil {
		return out, err
	}

	err = c.observe(ctx, OpFindOne, tracing.SpanOperationDBQuery, func(ctx context.Context) error {
		raw, err := c.executor.FindOne(ctx, c.name, nonNil(normalized), opts)
		if err != nil {
			return storeError(OpFindOne, c.name, err)
		}
		out, err = c.hydrateOrDefault(raw)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// FindOneAndUpdate atomically applies update to the first record matching
// filter and returns it hydrated, or the default instance when nothing matched.
func (c *Collection[T]) FindOneAndUpdate(ctx context.Context, filter Filter, update interface{}, opts *FindOneAndUpdateOptions) (T, error) {
	var out T
	normalized, err := NormalizeID(filter)
	if err != nil {
		return out, err
	}

	err = c.observe(ctx, OpFindOneAndUpdate, tracing.SpanOperationDBUpdate, func(ctx context.Context) error {
		raw, err := c.executor.FindOneAndUpdate(ctx, c.name, nonNil(normalized), update, opts)
		if err != nil {
			return storeError(OpFindOneAndUpdate, c.name, err)
		}
		out, err = c.hydrateOrDefault(raw)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Find returns every record matching query, hydrated and in store order.
// Nothing matching yields an empty slice. fields is an optional projection
// (see Projection); zero skip, limit or timeout apply no bound.
func (c *Collection[T]) Find(ctx context.Context, query Filter, fields bson.D, skip, limit int64, timeout time.Duration) ([]T, error) {
	var out []T
	err := c.observe(ctx, OpFind, tracing.SpanOperationDBQuery, func(ctx context.Context) error {
		cursor := c.executor.Find(c.name, nonNil(query), &FindOptions{
			Projection: fields,
			Skip:       skip,
			Limit:      limit,
			MaxTime:    timeout,
		})
		raws, err := cursor.All(ctx)
		if err != nil {
			return storeError(OpFind, c.name, err)
		}
		out, err = c.hydrateAll(ctx, raws)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of records matching query.
func (c *Collection[T]) Count(ctx context.Context, query Filter, opts *CountOptions) (int64, error) {
	var n int64
	err := c.observe(ctx, OpCount, tracing.SpanOperationDBQuery, func(ctx context.Context) error {
		var err error
		n, err = c.executor.Count(ctx, c.name, nonNil(query), opts)
		return storeError(OpCount, c.name, err)
	})
	return n, err
}

// Aggregate returns a lazy cursor over pipeline. Pipeline factories passed to
// Paginate usually wrap this call.
func (c *Collection[T]) Aggregate(pipeline mongo.Pipeline) PipelineCursor {
	return c.executor.Aggregate(c.name, pipeline)
}

// Paginate runs a paged query and returns raw records.
//
// raw carries the caller's parameters: filter (free text searched across the
// searchable fields), skip, limit and order (a sort key such as "-name", or a
// list of them). source picks the base query; nil means every document.
// Total ignores skip and limit but honors every filter.
func (c *Collection[T]) Paginate(ctx context.Context, raw map[string]interface{}, source QuerySource) (Page[bson.M], error) {
	var page Page[bson.M]
	err := c.observe(ctx, OpPaginate, tracing.SpanOperationDBQuery, func(ctx context.Context) error {
		records, total, err := c.paginate(ctx, raw, source)
		if err != nil {
			return err
		}
		page = Page[bson.M]{Data: records, Total: total}
		return nil
	})
	if err != nil {
		return Page[bson.M]{}, err
	}
	return page, nil
}

// PaginateHydrated is Paginate with every record hydrated into T.
func (c *Collection[T]) PaginateHydrated(ctx context.Context, raw map[string]interface{}, source QuerySource) (Page[T], error) {
	var page Page[T]
	err := c.observe(ctx, OpPaginate, tracing.SpanOperationDBQuery, func(ctx context.Context) error {
		records, total, err := c.paginate(ctx, raw, source)
		if err != nil {
			return err
		}
		items, err := c.hydrateAll(ctx, records)
		if err != nil {
			return err
		}
		page = Page[T]{Data: items, Total: total}
		return nil
	})
	if err != nil {
		return Page[T]{}, err
	}
	return page, nil
}

// queryPlan is a page cursor plus the way to count its unpaged result set.
type queryPlan struct {
	mode  string
	page  Cursor
	total func(ctx context.Context) (int64, error)
}

func (c *Collection[T]) paginate(ctx context.Context, raw map[string]interface{}, source QuerySource) ([]bson.M, int64, error) {
	params, err := NormalizeQueryParameters(raw)
	if err != nil {
		return nil, 0, err
	}

	plan, err := c.plan(source, params)
	if err != nil {
		return nil, 0, err
	}

	pageCursor, err := Compose(plan.page, params)
	if err != nil {
		return nil, 0, err
	}

	var (
		records []bson.M
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := pageCursor.All(gctx)
		if err != nil {
			return storeError(OpPage, c.name, err)
		}
		records = recs
		return nil
	})
	g.Go(func() error {
		n, err := plan.total(gctx)
		if err != nil {
			return storeError(OpTotal, c.name, err)
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if records == nil {
		records = []bson.M{}
	}
	c.log.WithContext(ctx).Debug("document page loaded",
		"mode", plan.mode,
		"returned", len(records),
		"total", total,
	)
	return records, total, nil
}

// plan builds the page cursor and the total query for source. The search
// filter from params applies to both, so the total counts what is paged over.
func (c *Collection[T]) plan(source QuerySource, params *QueryParameters) (*queryPlan, error) {
	var search string
	if params != nil {
		search = params.Filter
	}

	if src, ok := source.(pipelineSource); ok {
		if src.factory == nil {
			return nil, fmt.Errorf("pipeline factory is required")
		}
		pageCursor := src.factory()
		totalCursor := src.factory()
		if pageCursor == nil || totalCursor == nil {
			return nil, fmt.Errorf("pipeline factory returned a nil cursor")
		}
		if search != "" {
			match := searchFilter(search, c.searchable)
			pageCursor = pageCursor.Match(match)
			totalCursor = totalCursor.Match(match.Clone())
		}
		return &queryPlan{mode: modePipeline, page: pageCursor, total: totalCursor.Count}, nil
	}

	var (
		filter Filter
		fields = c.searchable
		mode   = modePlain
	)
	switch src := source.(type) {
	case nil:
		filter = Filter{}
	case plainSource:
		normalized, err := NormalizeID(nonNil(src.filter))
		if err != nil {
			return nil, err
		}
		filter = normalized
	case textSource:
		mode = modeText
		if len(src.fields) > 0 {
			fields = src.fields
		}
		filter = searchFilter(src.text, fields)
	default:
		return nil, fmt.Errorf("unsupported query source %T", source)
	}

	if search != "" {
		filter = and(filter, searchFilter(search, fields))
	}

	return &queryPlan{
		mode: mode,
		page: c.executor.Find(c.name, filter, nil),
		total: func(ctx context.Context) (int64, error) {
			return c.executor.Count(ctx, c.name, filter, nil)
		},
	}, nil
}

func (c *Collection[T]) hydrateOrDefault(raw bson.M) (T, error) {
	if raw == nil {
		return c.hydrator.Default(), nil
	}
	out, err := c.hydrator.Hydrate(raw)
	if err != nil {
		return out, fmt.Errorf("hydrate %s record: %w", c.name, err)
	}
	return out, nil
}

// hydrateAll keeps record order; with concurrency above 1 records are hydrated in parallel.
func (c *Collection[T]) hydrateAll(ctx context.Context, raws []bson.M) ([]T, error) {
	out := make([]T, len(raws))
	if c.hydrateConcurrency < 2 || len(raws) < 2 {
		for i, raw := range raws {
			item, err := c.hydrateOrDefault(raw)
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.hydrateConcurrency)
	for i, raw := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, err := c.hydrateOrDefault(raw)
			if err != nil {
				return err
			}
			out[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// observe wraps a store call in a span, metrics and failure logging.
func (c *Collection[T]) observe(ctx context.Context, op string, spanOp tracing.SpanOperation, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartDatabaseSpan(ctx, spanOp,
		tracing.WithDBSystem("mongodb"),
		tracing.WithDBTable(c.name),
		tracing.WithDBStatement(op),
	)
	defer span.End()

	start := time.Now()
	err := c.run(ctx, op, fn)
	c.metrics.Observe(c.name, op, err, time.Since(start))

	if err != nil {
		tracing.RecordError(span, err)
		c.log.WithContext(ctx).Error("document operation failed", "operation", op, "error", err)
		return err
	}
	tracing.RecordSuccess(span)
	return nil
}

func (c *Collection[T]) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	err := c.breaker.Execute(ctx, fn)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return storeError(op, c.name, err)
	}
	return err
}

// Projection builds an inclusion projection from field names.
func Projection(fields ...string) bson.D {
	if len(fields) == 0 {
		return nil
	}
	projection := make(bson.D, 0, len(fields))
	for _, field := range fields {
		projection = append(projection, bson.E{Key: field, Value: 1})
	}
	return projection
}

func nonNil(f Filter) Filter {
	if f == nil {
		return Filter{}
	}
	return f
}
