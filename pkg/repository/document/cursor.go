package document

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Cursor is a lazy, single-use result sequence. Sort, Skip and Limit only
// record intent; nothing reaches the store until All is called. After All,
// the cursor is spent: reading or modifying it again fails with ErrCursorConsumed.
type Cursor interface {
	// Sort adds spec as a less significant ordering than any previous Sort:
	// successive calls build one compound sort, so the first key dominates.
	Sort(spec bson.D) Cursor
	Skip(n int64) Cursor
	Limit(n int64) Cursor
	// All runs the query and returns every record in order.
	All(ctx context.Context) ([]bson.M, error)
}

// PipelineCursor is a Cursor over an aggregation pipeline.
type PipelineCursor interface {
	Cursor
	// Match appends a $match stage after the stages already in the pipeline.
	Match(filter Filter) PipelineCursor
	// Count runs the pipeline through a {$group: {_id: null, count: {$sum: 1}}}
	// stage and returns the count, or 0 when the pipeline yields nothing.
	Count(ctx context.Context) (int64, error)
}

// PipelineFactory builds a fresh pipeline cursor. Pipeline cursors cannot be
// restarted, so pagination asks for one per query it runs.
type PipelineFactory func() PipelineCursor

// Compose applies the parameters to c in fixed order: every sort spec, then
// skip, then limit. Sorting first keeps pages stable. Nil params return c as is.
//
// A sort list merges into one compound sort in list order, so ["name", "-age"]
// orders by name and breaks ties by descending age. The first key is the most
// significant, unlike chained driver sorts where the last call replaces the
// rest.
func Compose(c Cursor, params *QueryParameters) (Cursor, error) {
	if params == nil {
		return c, nil
	}

	if params.SortKeyOrList != nil {
		specs, err := SortSpecs(params.SortKeyOrList)
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			c = c.Sort(spec)
		}
	}
	if params.Skip > 0 {
		c = c.Skip(params.Skip)
	}
	if params.Limit > 0 {
		c = c.Limit(params.Limit)
	}
	return c, nil
}

// cursorState is the bookkeeping shared by the store cursors.
type cursorState struct {
	sort     bson.D
	skip     int64
	limit    int64
	consumed bool
	err      error
}

func (s *cursorState) addSort(spec bson.D) {
	if s.consumed {
		s.err = ErrCursorConsumed
		return
	}
	s.sort = mergeSort(s.sort, spec)
}

func (s *cursorState) setSkip(n int64) {
	if s.consumed {
		s.err = ErrCursorConsumed
		return
	}
	s.skip = n
}

func (s *cursorState) setLimit(n int64) {
	if s.consumed {
		s.err = ErrCursorConsumed
		return
	}
	s.limit = n
}

// consume marks the cursor as read and reports any deferred error.
func (s *cursorState) consume() error {
	if s.consumed {
		return ErrCursorConsumed
	}
	s.consumed = true
	return s.err
}
