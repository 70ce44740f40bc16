package query

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/carepoint/portal-api/internal/docstore"
)

// Matches evaluates one filter against one document. Unknown operators
// match nothing. A document missing the filtered field matches only
// "!=" and "not-in": an absent value is unequal to every concrete
// value.
func Matches(doc docstore.Document, f Filter) bool {
	value, present := doc[f.Field]

	switch f.Op {
	case OpEq:
		return present && equal(value, f.Value)
	case OpNeq:
		return !present || !equal(value, f.Value)
	case OpGt:
		cmp, ok := compare(value, f.Value)
		return present && ok && cmp > 0
	case OpLt:
		cmp, ok := compare(value, f.Value)
		return present && ok && cmp < 0
	case OpGte:
		cmp, ok := compare(value, f.Value)
		return present && ok && cmp >= 0
	case OpLte:
		cmp, ok := compare(value, f.Value)
		return present && ok && cmp <= 0
	case OpArrayContains:
		arr, ok := asSlice(value)
		if !present || !ok {
			return false
		}
		for _, el := range arr {
			if equal(el, f.Value) {
				return true
			}
		}
		return false
	case OpIn:
		candidates, ok := asSlice(f.Value)
		if !present || !ok {
			return false
		}
		for _, c := range candidates {
			if equal(value, c) {
				return true
			}
		}
		return false
	case OpArrayContainsAny:
		arr, arrOK := asSlice(value)
		candidates, candOK := asSlice(f.Value)
		if !present || !arrOK || !candOK {
			return false
		}
		for _, el := range arr {
			for _, c := range candidates {
				if equal(el, c) {
					return true
				}
			}
		}
		return false
	case OpNotIn:
		candidates, ok := asSlice(f.Value)
		if !ok {
			return false
		}
		if !present {
			return true
		}
		for _, c := range candidates {
			if equal(value, c) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MatchesAll reports whether the document satisfies every filter.
func MatchesAll(doc docstore.Document, filters []Filter) bool {
	for _, f := range filters {
		if !Matches(doc, f) {
			return false
		}
	}
	return true
}

// Apply runs the in-memory part of a query: refinement, ordering,
// limit. The input slice is not modified.
func Apply(docs []docstore.Document, q Query) []docstore.Document {
	out := make([]docstore.Document, 0, len(docs))
	for _, doc := range docs {
		if MatchesAll(doc, q.Refine) {
			out = append(out, doc)
		}
	}

	if q.OrderBy != "" {
		SortDocuments(out, q.OrderBy, q.Descending)
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// SortDocuments stable-sorts docs by one field. Numbers order
// numerically, strings lexicographically (dates, clock times and stored
// timestamps are fixed-width strings, so this is chronological for
// them). Documents missing the field sort last in either direction.
func SortDocuments(docs []docstore.Document, field string, descending bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		vi, iok := docs[i][field]
		vj, jok := docs[j][field]
		if iok != jok {
			return iok
		}
		if !iok {
			return false
		}
		cmp, ok := compare(vi, vj)
		if !ok {
			cmp = classOf(vi) - classOf(vj)
		}
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

func equal(a, b interface{}) bool {
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		return ok && na == nb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}

// compare orders two values of the same kind. The second return is
// false when the values are not mutually comparable.
func compare(a, b interface{}) (int, bool) {
	if na, aok := toNumber(a); aok {
		nb, bok := toNumber(b)
		if !bok {
			return 0, false
		}
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	if sa, aok := a.(string); aok {
		sb, bok := b.(string)
		if !bok {
			return 0, false
		}
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// classOf ranks value kinds so mixed-type sorts stay deterministic:
// numbers, then strings, then booleans, then everything else.
func classOf(v interface{}) int {
	if _, ok := toNumber(v); ok {
		return 0
	}
	switch v.(type) {
	case string:
		return 1
	case bool:
		return 2
	}
	return 3
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, el := range s {
			out[i] = el
		}
		return out, true
	case []int:
		out := make([]interface{}, len(s))
		for i, el := range s {
			out[i] = el
		}
		return out, true
	}
	return nil, false
}
