package document

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Recognized keys of a raw query parameter bag.
const (
	ParamFilter = "filter"
	ParamSkip   = "skip"
	ParamLimit  = "limit"
	ParamOrder  = "order"
)

// QueryParameters holds the normalized paging and search parameters of a call.
// Zero values mean "no constraint": a zero Skip or Limit is never applied.
type QueryParameters struct {
	Filter        string
	Skip          int64
	Limit         int64
	SortKeyOrList interface{}
}

// NormalizeQueryParameters extracts the recognized keys of raw and coerces
// them. It returns nil for a nil bag. Unknown keys are ignored.
func NormalizeQueryParameters(raw map[string]interface{}) (*QueryParameters, error) {
	if raw == nil {
		return nil, nil
	}

	params := &QueryParameters{}

	if v, ok := raw[ParamFilter]; ok && v != nil {
		text, isString := v.(string)
		if !isString {
			return nil, documentError(ErrMalformedParameter, fmt.Sprintf("filter must be a string, got %T", v))
		}
		params.Filter = text
	}

	skip, err := parseCount(ParamSkip, raw[ParamSkip])
	if err != nil {
		return nil, err
	}
	params.Skip = skip

	limit, err := parseCount(ParamLimit, raw[ParamLimit])
	if err != nil {
		return nil, err
	}
	params.Limit = limit

	if order, ok := raw[ParamOrder]; ok && !isEmptyOrder(order) {
		params.SortKeyOrList = order
	}

	return params, nil
}

// ParametersFromValues converts an HTTP query string into a raw parameter bag.
// A repeated order key becomes a list of sort keys.
func ParametersFromValues(values url.Values) map[string]interface{} {
	raw := make(map[string]interface{}, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if key == ParamOrder && len(vals) > 1 {
			raw[key] = append([]string(nil), vals...)
			continue
		}
		raw[key] = vals[0]
	}
	return raw
}

// parseCount coerces a skip or limit value. Empty and zero values yield 0 (absent).
func parseCount(name string, v interface{}) (int64, error) {
	var (
		n   int64
		err error
	)

	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		n, err = strconv.ParseInt(s, 10, 64)
	case json.Number:
		n, err = x.Int64()
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, documentError(ErrMalformedParameter, fmt.Sprintf("%s %d overflows int64", name, x))
		}
		n = int64(x)
	case float32:
		n, err = floatCount(float64(x))
	case float64:
		n, err = floatCount(x)
	default:
		return 0, documentError(ErrMalformedParameter, fmt.Sprintf("%s must be a number, got %T", name, v))
	}

	if err != nil {
		return 0, documentError(ErrMalformedParameter, fmt.Sprintf("%s %v: %v", name, v, err))
	}
	if n < 0 {
		return 0, documentError(ErrMalformedParameter, fmt.Sprintf("%s must not be negative, got %d", name, n))
	}
	return n, nil
}

// floatCount accepts JSON numbers that hold a whole value, the same rule
// strconv.ParseInt applies to strings.
func floatCount(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("not a finite integer")
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number")
	}
	return int64(f), nil
}

func isEmptyOrder(order interface{}) bool {
	switch o := order.(type) {
	case nil:
		return true
	case string:
		return o == ""
	case []string:
		return len(o) == 0
	case []interface{}:
		return len(o) == 0
	default:
		return false
	}
}
