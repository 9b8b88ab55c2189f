// Package query compiles declarative process documents into SQL text.
//
// A process document is decoded once into the node types of this file
// (expressions and conditions), and a Compiler renders them by exhaustive
// type switch. Every function name and operator that reaches the output is
// checked against a Whitelist first, so no SQL is produced for a tree that
// contains anything outside it.
package query

// Expr is a value expression.
type Expr interface {
	exprNode()
}

// ColumnRef names a column of the source table.
type ColumnRef struct {
	Name string
}

func (*ColumnRef) exprNode() {}

// LiteralKind distinguishes literal values.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitBool
	LitNumber
	LitString
)

// Literal is a constant. Number literals keep their JSON text.
type Literal struct {
	Kind LiteralKind
	Text string
	Bool bool
}

func (*Literal) exprNode() {}

// NamedRef references a named expression (or, at the outer layer, a
// group-by column). It must be in scope where it is compiled.
type NamedRef struct {
	Name string
}

func (*NamedRef) exprNode() {}

// FuncCall applies a whitelisted function.
type FuncCall struct {
	Name string // upper case
	Args []Expr
}

func (*FuncCall) exprNode() {}

// BinaryOp is an infix arithmetic or comparison operation.
type BinaryOp struct {
	Op          string // upper case, single spaced
	Left, Right Expr
}

func (*BinaryOp) exprNode() {}

// When is one guard/result arm of a CaseExpr.
type When struct {
	Cond Condition
	Then Expr
}

// CaseExpr is a searched CASE; Else may be nil.
type CaseExpr struct {
	Whens []When
	Else  Expr
}

func (*CaseExpr) exprNode() {}

// Star is the "*" argument of COUNT.
type Star struct{}

func (*Star) exprNode() {}

// Condition is a boolean filter or CASE guard.
type Condition interface {
	condNode()
}

// Comparison is "column op value" for the binary comparison operators.
type Comparison struct {
	Column string
	Op     string
	Value  *Literal
}

func (*Comparison) condNode() {}

// InList is "column [NOT] IN (values...)".
type InList struct {
	Column  string
	Negated bool
	Values  []*Literal
}

func (*InList) condNode() {}

// Between is "column BETWEEN low AND high".
type Between struct {
	Column    string
	Low, High *Literal
}

func (*Between) condNode() {}

// IsNull is "column IS [NOT] NULL".
type IsNull struct {
	Column  string
	Negated bool
}

func (*IsNull) condNode() {}

// And holds when every condition holds.
type And struct {
	Conds []Condition
}

func (*And) condNode() {}

// Or holds when any condition holds.
type Or struct {
	Conds []Condition
}

func (*Or) condNode() {}

// Not negates a condition.
type Not struct {
	Cond Condition
}

func (*Not) condNode() {}

// ProcessSpec describes one grouped query over a source table.
type ProcessSpec struct {
	Source           string
	Where            []Condition
	NamedExpressions []NamedExpr
	GroupBy          []string
	Aggregations     []Aggregation
	OrderBy          []OrderItem
	Limit            *int64
}

// NamedExpr is a computed column materialised in the base CTE. Later named
// expressions and the outer query may reference it.
type NamedExpr struct {
	Name string
	Expr Expr
}

// Aggregation is one aggregate output column. Expr is nil for COUNT(*).
type Aggregation struct {
	Fn    string // upper case
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY entry. Exactly one of Position (1-based),
// Column or Expr is set.
type OrderItem struct {
	Position int
	Column   string
	Expr     Expr
	Desc     bool
}
