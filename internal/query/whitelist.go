package query

import "strings"

// Whitelist is the immutable set of function names and operators the
// compiler may render. Build one with NewWhitelist or use DefaultWhitelist.
type Whitelist struct {
	aggregates map[string]struct{}
	scalars    map[string]struct{}
	condOps    map[string]struct{}
	binaryOps  map[string]struct{}
}

// WhitelistConfig lists the allowed names. Entries are case-insensitive.
type WhitelistConfig struct {
	Aggregates   []string
	Scalars      []string
	ConditionOps []string
	BinaryOps    []string
}

// Defaults.
var (
	DefaultAggregates   = []string{"SUM", "COUNT", "AVG", "MIN", "MAX"}
	DefaultScalars      = []string{"COALESCE", "ABS", "ROUND", "FLOOR", "CEIL", "NULLIF"}
	DefaultConditionOps = []string{"=", "!=", "<", ">", "<=", ">=", "IN", "NOT IN", "LIKE", "BETWEEN", "IS NULL", "IS NOT NULL"}
	DefaultBinaryOps    = []string{"+", "-", "*", "/", "%", "=", "!=", "<>", "<", ">", "<=", ">=", "LIKE"}
)

var defaultWhitelist = NewWhitelist(WhitelistConfig{
	Aggregates:   DefaultAggregates,
	Scalars:      DefaultScalars,
	ConditionOps: DefaultConditionOps,
	BinaryOps:    DefaultBinaryOps,
})

// DefaultWhitelist returns the whitelist built from the package defaults.
func DefaultWhitelist() *Whitelist { return defaultWhitelist }

// NewWhitelist copies cfg into a new Whitelist.
func NewWhitelist(cfg WhitelistConfig) *Whitelist {
	return &Whitelist{
		aggregates: toSet(cfg.Aggregates),
		scalars:    toSet(cfg.Scalars),
		condOps:    toSet(cfg.ConditionOps),
		binaryOps:  toSet(cfg.BinaryOps),
	}
}

// IsAggregate reports whether name is an allowed aggregate function.
func (w *Whitelist) IsAggregate(name string) bool { return has(w.aggregates, name) }

// IsFunction reports whether name is an allowed aggregate or scalar function.
func (w *Whitelist) IsFunction(name string) bool {
	return has(w.aggregates, name) || has(w.scalars, name)
}

// IsConditionOp reports whether op may appear in a condition.
func (w *Whitelist) IsConditionOp(op string) bool { return has(w.condOps, op) }

// IsBinaryOp reports whether op may appear between two expressions.
func (w *Whitelist) IsBinaryOp(op string) bool { return has(w.binaryOps, op) }

func toSet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[normalizeOp(n)] = struct{}{}
	}
	return m
}

func has(m map[string]struct{}, name string) bool {
	_, ok := m[normalizeOp(name)]
	return ok
}

// normalizeOp upper-cases and collapses inner white space, so "not  in"
// and "NOT IN" are the same operator.
func normalizeOp(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
