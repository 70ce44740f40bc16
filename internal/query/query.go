// Package query composes document reads the way the portals consume
// them: one server-side equality filter does the coarse fetch, then
// refinement filters, ordering and a limit are applied in memory. The
// narrow server surface keeps the store free of per-query composite
// indexes.
package query

// Supported refinement operators. Operator strings arrive as data, so
// evaluation fails closed: an unrecognized operator matches no record.
const (
	OpEq               = "=="
	OpNeq              = "!="
	OpGt               = ">"
	OpLt               = "<"
	OpGte              = ">="
	OpLte              = "<="
	OpArrayContains    = "array-contains"
	OpIn               = "in"
	OpArrayContainsAny = "array-contains-any"
	OpNotIn            = "not-in"
)

// ValidOp reports whether op is a recognized refinement operator.
func ValidOp(op string) bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte,
		OpArrayContains, OpIn, OpArrayContainsAny, OpNotIn:
		return true
	}
	return false
}

// Filter is one field predicate.
type Filter struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// Query describes one composed read. Where is the single equality
// filter pushed to the store; nil fetches the whole collection. Refine
// filters AND together in memory. Results carry no ordering guarantee
// unless OrderBy is set.
type Query struct {
	Collection string   `json:"collection"`
	Where      *Filter  `json:"where,omitempty"`
	Refine     []Filter `json:"refine,omitempty"`
	OrderBy    string   `json:"orderBy,omitempty"`
	Descending bool     `json:"descending,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Equals builds the primary equality filter.
func Equals(field string, value interface{}) *Filter {
	return &Filter{Field: field, Op: OpEq, Value: value}
}
