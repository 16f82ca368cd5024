package document

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Direction is a MongoDB sort direction.
type Direction int

const (
	// Ascending sorts from lowest to highest.
	Ascending Direction = 1
	// Descending sorts from highest to lowest.
	Descending Direction = -1
)

// DescendingPrefix marks a sort key as descending ("-created_at").
const DescendingPrefix = "-"

// SortKeyToSpec translates one sort key into a sort document. Strings become a
// single-field document; bson.D, bson.E and maps of directions are returned as
// already-structured specs.
func SortKeyToSpec(key interface{}) (bson.D, error) {
	switch k := key.(type) {
	case string:
		field := strings.TrimPrefix(k, DescendingPrefix)
		if strings.TrimSpace(field) == "" {
			return nil, documentError(ErrMalformedParameter, fmt.Sprintf("empty sort key %q", k))
		}
		dir := Ascending
		if strings.HasPrefix(k, DescendingPrefix) {
			dir = Descending
		}
		return bson.D{{Key: field, Value: int(dir)}}, nil
	case bson.D:
		return k, nil
	case bson.E:
		return bson.D{k}, nil
	case bson.M:
		return mapToSpec(k), nil
	case map[string]interface{}:
		return mapToSpec(k), nil
	case map[string]int:
		m := make(map[string]interface{}, len(k))
		for field, dir := range k {
			m[field] = dir
		}
		return mapToSpec(m), nil
	default:
		return nil, documentError(ErrMalformedParameter, fmt.Sprintf("unsupported sort key type %T", key))
	}
}

// SortSpecs translates a sort key, a list of keys, or a structured spec into
// the ordered sequence of sort documents applied to a cursor.
func SortSpecs(keyOrList interface{}) ([]bson.D, error) {
	switch v := keyOrList.(type) {
	case nil:
		return nil, nil
	case []string:
		specs := make([]bson.D, 0, len(v))
		for _, key := range v {
			spec, err := SortKeyToSpec(key)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
		return specs, nil
	case []interface{}:
		specs := make([]bson.D, 0, len(v))
		for _, key := range v {
			spec, err := SortKeyToSpec(key)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
		return specs, nil
	case bson.A:
		return SortSpecs([]interface{}(v))
	case []bson.D:
		return v, nil
	default:
		spec, err := SortKeyToSpec(v)
		if err != nil {
			return nil, err
		}
		return []bson.D{spec}, nil
	}
}

// mapToSpec orders map keys alphabetically; Go maps carry no key order.
func mapToSpec(m map[string]interface{}) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	spec := make(bson.D, 0, len(keys))
	for _, k := range keys {
		spec = append(spec, bson.E{Key: k, Value: m[k]})
	}
	return spec
}

// mergeSort appends the fields of next to current as less significant keys.
// A field already present keeps its position and takes the new direction.
func mergeSort(current, next bson.D) bson.D {
	out := make(bson.D, 0, len(current)+len(next))
	out = append(out, current...)
	for _, e := range next {
		replaced := false
		for i := range out {
			if out[i].Key == e.Key {
				out[i].Value = e.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return out
}
