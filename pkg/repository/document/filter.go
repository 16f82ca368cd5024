package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the reserved identifier key of every document.
const IDField = "_id"

// Filter represents field-based filtering criteria for document stores.
// Values are literals, operator documents ($regex, $in, ...) or nested $and/$or lists.
type Filter map[string]interface{}

// Clone returns a shallow copy of the filter.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// NormalizeID returns a copy of filter whose _id value is a primitive.ObjectID
// when the caller supplied it as a hex string. Structured values (ObjectIDs,
// operator documents, lists) and filters without _id are returned as they are.
// The input map is never modified.
func NormalizeID(filter Filter) (Filter, error) {
	raw, ok := filter[IDField]
	if !ok {
		return filter, nil
	}

	switch v := raw.(type) {
	case string:
		oid, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidIdentifier, v, err)
		}
		out := filter.Clone()
		out[IDField] = oid
		return out, nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return nil, documentError(ErrInvalidIdentifier, fmt.Sprintf("%v (%T) is not an ObjectID", v, v))
	default:
		return filter, nil
	}
}

// and joins filters with $and, skipping empty ones.
func and(filters ...Filter) Filter {
	parts := make([]interface{}, 0, len(filters))
	for _, f := range filters {
		if len(f) > 0 {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return Filter{}
	case 1:
		return parts[0].(Filter)
	default:
		return Filter{"$and": parts}
	}
}
