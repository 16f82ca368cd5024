package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer scope used for store spans.
const InstrumentationName = "github.com/nimburion/docrepo/store"

// SpanOperation represents a traced operation type.
type SpanOperation string

// Span operation constants for document store operations
const (
	// SpanOperationDBQuery represents a read (find, count, paginate)
	SpanOperationDBQuery SpanOperation = "db.query"
	// SpanOperationDBAggregate represents an aggregation pipeline
	SpanOperationDBAggregate SpanOperation = "db.aggregate"
	// SpanOperationDBInsert represents a database insert operation
	SpanOperationDBInsert SpanOperation = "db.insert"
	// SpanOperationDBUpdate represents a database update operation
	SpanOperationDBUpdate SpanOperation = "db.update"
	// SpanOperationDBDelete represents a database delete operation
	SpanOperationDBDelete SpanOperation = "db.delete"
)

// StartDatabaseSpan creates a client span for a database operation.
// The span is named "DB <operation> <collection>" when a collection is given.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer(InstrumentationName)

	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.table != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.table)
	}

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanOpts.attributes...),
	)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	table      string
	attributes []attribute.KeyValue
}

// WithDBTable sets the collection name for the span.
func WithDBTable(table string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.table = table
		opts.attributes = append(opts.attributes, attribute.String("db.collection", table))
	}
}

// WithDBSystem sets the database system (e.g. "mongodb").
func WithDBSystem(system string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBStatement sets the logical statement executed.
func WithDBStatement(statement string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.statement", statement))
	}
}

// WithDBName sets the database name.
func WithDBName(name string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.name", name))
	}
}

// RecordError records err on the span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
