package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Hydrator turns raw records into domain objects of type T.
// Default is what singular lookups return when no record matches; it must be
// an ordinary T whose fields are at their zero/default values.
type Hydrator[T any] interface {
	Default() T
	Hydrate(raw bson.M) (T, error)
}

// HydratorFuncs builds a Hydrator from two functions.
// A nil DefaultFunc yields the zero value of T.
type HydratorFuncs[T any] struct {
	DefaultFunc func() T
	HydrateFunc func(raw bson.M) (T, error)
}

// Default implements Hydrator.
func (h HydratorFuncs[T]) Default() T {
	if h.DefaultFunc == nil {
		var zero T
		return zero
	}
	return h.DefaultFunc()
}

// Hydrate implements Hydrator.
func (h HydratorFuncs[T]) Hydrate(raw bson.M) (T, error) {
	if h.HydrateFunc == nil {
		var zero T
		return zero, fmt.Errorf("hydrate function is not configured")
	}
	return h.HydrateFunc(raw)
}

// BSONHydrator decodes records into T through its bson struct tags.
// T should be a struct type; the default instance is its zero value.
type BSONHydrator[T any] struct{}

// Default implements Hydrator.
func (BSONHydrator[T]) Default() T {
	var zero T
	return zero
}

// Hydrate implements Hydrator.
func (BSONHydrator[T]) Hydrate(raw bson.M) (T, error) {
	var out T
	data, err := bson.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("encode record: %w", err)
	}
	if err := bson.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode record into %T: %w", out, err)
	}
	return out, nil
}

// RawHydrator keeps records as bson.M; its default is an empty document.
type RawHydrator struct{}

// Default implements Hydrator.
func (RawHydrator) Default() bson.M { return bson.M{} }

// Hydrate implements Hydrator.
func (RawHydrator) Hydrate(raw bson.M) (bson.M, error) { return raw, nil }
