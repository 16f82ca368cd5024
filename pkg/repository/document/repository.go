package document

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Reader provides read operations over a document collection.
type Reader[T any] interface {
	FindOne(ctx context.Context, filter Filter, opts *FindOneOptions) (T, error)
	Find(ctx context.Context, query Filter, fields bson.D, skip, limit int64, timeout time.Duration) ([]T, error)
	Count(ctx context.Context, query Filter, opts *CountOptions) (int64, error)
	Paginate(ctx context.Context, raw map[string]interface{}, source QuerySource) (Page[bson.M], error)
	PaginateHydrated(ctx context.Context, raw map[string]interface{}, source QuerySource) (Page[T], error)
}

// Writer provides write operations over a document collection.
type Writer[T any] interface {
	FindOneAndUpdate(ctx context.Context, filter Filter, update interface{}, opts *FindOneAndUpdateOptions) (T, error)
}

// Repository combines Reader and Writer interfaces for document stores.
type Repository[T any] interface {
	Reader[T]
	Writer[T]
}

var _ Repository[bson.M] = (*Collection[bson.M])(nil)
