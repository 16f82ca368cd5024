package document

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// memExecutor is an in-memory MongoExecutor. It understands the subset of the
// query language the repositories emit: equality, $and, $or, $expr:false, the
// token lookahead regexes, and $match/$sort/$skip/$limit/$group pipelines.
type memExecutor struct {
	mu          sync.Mutex
	collections map[string][]bson.M

	// failOp makes the named call ("find", "count", "aggregate", "find_one",
	// "find_one_and_update") fail with failErr.
	failOp  string
	failErr error

	findCalls      int
	countCalls     int
	aggregateCalls int
	lastFindFilter Filter
	lastCount      Filter
}

func newMemExecutor() *memExecutor {
	return &memExecutor{collections: map[string][]bson.M{}}
}

func (m *memExecutor) insert(collection string, docs ...bson.M) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection], docs...)
}

func (m *memExecutor) docs(collection string) []bson.M {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bson.M(nil), m.collections[collection]...)
}

func (m *memExecutor) fail(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOp == op {
		return m.failErr
	}
	return nil
}

func (m *memExecutor) FindOne(_ context.Context, collection string, filter Filter, opts *FindOneOptions) (bson.M, error) {
	if err := m.fail("find_one"); err != nil {
		return nil, err
	}
	var s bson.D
	if opts != nil {
		s = opts.Sort
	}
	docs := sortDocs(filterDocs(m.docs(collection), filter), s)
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (m *memExecutor) FindOneAndUpdate(_ context.Context, collection string, filter Filter, update interface{}, opts *FindOneAndUpdateOptions) (bson.M, error) {
	if err := m.fail("find_one_and_update"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, doc := range m.collections[collection] {
		if !matches(doc, filter) {
			continue
		}
		before := copyDoc(doc)
		updateDoc, _ := asMap(update)
		set, _ := asMap(updateDoc["$set"])
		for k, v := range set {
			doc[k] = v
		}
		m.collections[collection][i] = doc
		if opts != nil && opts.ReturnUpdated {
			return copyDoc(doc), nil
		}
		return before, nil
	}
	return nil, nil
}

func (m *memExecutor) Find(collection string, filter Filter, opts *FindOptions) Cursor {
	m.mu.Lock()
	m.findCalls++
	m.lastFindFilter = filter
	m.mu.Unlock()

	c := &memFindCursor{exec: m, collection: collection, filter: filter}
	if opts != nil {
		c.opts = *opts
	}
	return c
}

func (m *memExecutor) Count(_ context.Context, collection string, filter Filter, _ *CountOptions) (int64, error) {
	m.mu.Lock()
	m.countCalls++
	m.lastCount = filter
	m.mu.Unlock()
	if err := m.fail("count"); err != nil {
		return 0, err
	}
	return int64(len(filterDocs(m.docs(collection), filter))), nil
}

func (m *memExecutor) Aggregate(collection string, pipeline mongo.Pipeline) PipelineCursor {
	m.mu.Lock()
	m.aggregateCalls++
	m.mu.Unlock()
	return &memPipelineCursor{exec: m, collection: collection, pipeline: append(mongo.Pipeline(nil), pipeline...)}
}

type memFindCursor struct {
	cursorState
	exec       *memExecutor
	collection string
	filter     Filter
	opts       FindOptions
}

func (c *memFindCursor) Sort(spec bson.D) Cursor { c.addSort(spec); return c }
func (c *memFindCursor) Skip(n int64) Cursor     { c.setSkip(n); return c }
func (c *memFindCursor) Limit(n int64) Cursor    { c.setLimit(n); return c }

func (c *memFindCursor) All(_ context.Context) ([]bson.M, error) {
	if err := c.consume(); err != nil {
		return nil, err
	}
	if err := c.exec.fail("find"); err != nil {
		return nil, err
	}
	docs := sortDocs(filterDocs(c.exec.docs(c.collection), c.filter), c.sort)
	docs = window(docs, firstPositive(c.skip, c.opts.Skip), firstPositive(c.limit, c.opts.Limit))
	if len(c.opts.Projection) > 0 {
		for i, doc := range docs {
			docs[i] = project(doc, c.opts.Projection)
		}
	}
	return docs, nil
}

type memPipelineCursor struct {
	cursorState
	exec       *memExecutor
	collection string
	pipeline   mongo.Pipeline
}

func (c *memPipelineCursor) Sort(spec bson.D) Cursor { c.addSort(spec); return c }
func (c *memPipelineCursor) Skip(n int64) Cursor     { c.setSkip(n); return c }
func (c *memPipelineCursor) Limit(n int64) Cursor    { c.setLimit(n); return c }

func (c *memPipelineCursor) Match(filter Filter) PipelineCursor {
	if c.consumed {
		c.err = ErrCursorConsumed
		return c
	}
	c.pipeline = append(c.pipeline, bson.D{{Key: "$match", Value: toBSON(filter)}})
	return c
}

func (c *memPipelineCursor) All(_ context.Context) ([]bson.M, error) {
	if err := c.consume(); err != nil {
		return nil, err
	}
	if err := c.exec.fail("aggregate"); err != nil {
		return nil, err
	}
	return runPipeline(c.exec.docs(c.collection), withPaging(c.pipeline, c.sort, c.skip, c.limit))
}

func (c *memPipelineCursor) Count(_ context.Context) (int64, error) {
	if err := c.consume(); err != nil {
		return 0, err
	}
	if err := c.exec.fail("aggregate"); err != nil {
		return 0, err
	}
	groups, err := runPipeline(c.exec.docs(c.collection), append(withPaging(c.pipeline, c.sort, c.skip, c.limit), countStage()))
	if err != nil {
		return 0, err
	}
	return groupCount(groups)
}

func runPipeline(docs []bson.M, pipeline mongo.Pipeline) ([]bson.M, error) {
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage must have exactly one operator: %v", stage)
		}
		op, arg := stage[0].Key, stage[0].Value
		switch op {
		case "$match":
			f, ok := asMap(arg)
			if !ok {
				return nil, fmt.Errorf("$match expects a document, got %T", arg)
			}
			docs = filterDocs(docs, f)
		case "$sort":
			spec, ok := arg.(bson.D)
			if !ok {
				return nil, fmt.Errorf("$sort expects bson.D, got %T", arg)
			}
			docs = sortDocs(docs, spec)
		case "$skip":
			docs = window(docs, toInt64(arg), 0)
		case "$limit":
			docs = window(docs, 0, toInt64(arg))
		case "$group":
			if len(docs) == 0 {
				docs = []bson.M{}
				continue
			}
			docs = []bson.M{{"_id": nil, "count": int32(len(docs))}}
		default:
			return nil, fmt.Errorf("unsupported stage %s", op)
		}
	}
	return docs, nil
}

func filterDocs(docs []bson.M, filter Filter) []bson.M {
	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		if matches(doc, filter) {
			out = append(out, copyDoc(doc))
		}
	}
	return out
}

func matches(doc bson.M, filter map[string]interface{}) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			for _, sub := range asList(cond) {
				m, _ := asMap(sub)
				if !matches(doc, m) {
					return false
				}
			}
		case "$or":
			matched := false
			for _, sub := range asList(cond) {
				m, _ := asMap(sub)
				if matches(doc, m) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$expr":
			if b, ok := cond.(bool); !ok || !b {
				return false
			}
		default:
			if !fieldMatches(doc[key], cond) {
				return false
			}
		}
	}
	return true
}

func fieldMatches(value, cond interface{}) bool {
	if re, ok := cond.(primitive.Regex); ok {
		s, isString := value.(string)
		return isString && lookaheadMatch(re, s)
	}
	if a, ok := toFloat(value); ok {
		if b, ok := toFloat(cond); ok {
			return a == b
		}
	}
	return reflect.DeepEqual(value, cond)
}

// lookaheadMatch evaluates the ^(?=.*a)(?=.*b).*$ patterns built by TokenPattern.
// Go's regexp has no lookahead, so each group is checked on its own. Without
// the s option . stops at newlines, so the anchored pattern can only match a
// single-line value; $ still matches before one trailing newline. The
// unanchored match-all pattern matches anything.
func lookaheadMatch(re primitive.Regex, value string) bool {
	if re.Pattern == matchAllPattern {
		return true
	}
	dotAll := strings.Contains(re.Options, "s")
	if !dotAll {
		value = strings.TrimSuffix(value, "\n")
		if strings.Contains(value, "\n") {
			return false
		}
	}
	flags := ""
	if strings.Contains(re.Options, "i") {
		flags += "i"
	}
	if dotAll {
		flags += "s"
	}
	prefix := ""
	if flags != "" {
		prefix = "(?" + flags + ")"
	}
	for _, group := range lookaheadGroups(re.Pattern) {
		if !regexp.MustCompile(prefix + group).MatchString(value) {
			return false
		}
	}
	return true
}

// lookaheadGroups extracts the bodies of (?=.*X) groups, honoring backslash escapes.
func lookaheadGroups(pattern string) []string {
	const open = "(?=.*"
	var groups []string
	for i := 0; i < len(pattern); {
		start := strings.Index(pattern[i:], open)
		if start < 0 {
			break
		}
		j := i + start + len(open)
		var b strings.Builder
		for j < len(pattern) && pattern[j] != ')' {
			if pattern[j] == '\\' && j+1 < len(pattern) {
				b.WriteByte(pattern[j])
				j++
			}
			b.WriteByte(pattern[j])
			j++
		}
		groups = append(groups, b.String())
		i = j + 1
	}
	return groups
}

func sortDocs(docs []bson.M, spec bson.D) []bson.M {
	if len(spec) == 0 {
		return docs
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, e := range spec {
			c := compare(docs[i][e.Key], docs[j][e.Key])
			if c == 0 {
				continue
			}
			if toInt64(e.Value) < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return docs
}

func compare(a, b interface{}) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func window(docs []bson.M, skip, limit int64) []bson.M {
	if skip >= int64(len(docs)) {
		return []bson.M{}
	}
	docs = docs[skip:]
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

func project(doc bson.M, projection bson.D) bson.M {
	out := bson.M{IDField: doc[IDField]}
	for _, e := range projection {
		if v, ok := doc[e.Key]; ok {
			out[e.Key] = v
		}
	}
	return out
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case Filter:
		return m, true
	case bson.M:
		return m, true
	case map[string]interface{}:
		return m, true
	case bson.D:
		out := make(map[string]interface{}, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	default:
		return nil, false
	}
}

func asList(v interface{}) []interface{} {
	switch l := v.(type) {
	case []interface{}:
		return l
	case bson.A:
		return l
	case []Filter:
		out := make([]interface{}, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out
	default:
		return nil
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt64(v interface{}) int64 {
	f, _ := toFloat(v)
	return int64(f)
}
