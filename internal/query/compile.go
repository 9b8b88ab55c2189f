package query

import (
	"regexp"
	"strconv"
	"strings"
)

// Compiler renders expression trees and process documents as SQL text.
// A Compiler is immutable and safe for concurrent use.
type Compiler struct {
	wl      *Whitelist
	dialect Dialect
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithWhitelist replaces the default whitelist.
func WithWhitelist(w *Whitelist) Option { return func(c *Compiler) { c.wl = w } }

// WithDialect selects the output dialect (default ANSI).
func WithDialect(d Dialect) Option { return func(c *Compiler) { c.dialect = d } }

// NewCompiler returns a compiler using DefaultWhitelist and ANSI unless
// options say otherwise.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{wl: DefaultWhitelist(), dialect: ANSI}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Scope is the set of names a NamedRef may resolve to. The zero value is
// empty. With returns an extended copy; a Scope is never modified.
type Scope struct {
	names map[string]struct{}
}

// NewScope returns a scope holding names.
func NewScope(names ...string) Scope { return Scope{}.With(names...) }

// With returns a copy of s extended by names.
func (s Scope) With(names ...string) Scope {
	m := make(map[string]struct{}, len(s.names)+len(names))
	for n := range s.names {
		m[n] = struct{}{}
	}
	for _, n := range names {
		m[n] = struct{}{}
	}
	return Scope{names: m}
}

// Has reports whether name is in scope.
func (s Scope) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// QuoteIdent quotes an identifier with double quotes, doubling any embedded
// double quote.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString quotes a string literal with single quotes, doubling any
// embedded single quote.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var numberRE = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

func (c *Compiler) literal(l *Literal) (string, error) {
	switch l.Kind {
	case LitNull:
		return "NULL", nil
	case LitBool:
		return c.dialect.boolLiteral(l.Bool), nil
	case LitNumber:
		if !numberRE.MatchString(l.Text) {
			return "", specErrorf("", "invalid numeric literal %q", l.Text)
		}
		return l.Text, nil
	case LitString:
		return QuoteString(l.Text), nil
	default:
		return "", specErrorf("", "unknown literal kind %d", l.Kind)
	}
}

// CompileExpr renders e. NamedRefs must resolve in scope.
func (c *Compiler) CompileExpr(e Expr, scope Scope) (string, error) {
	switch x := e.(type) {
	case *ColumnRef:
		return QuoteIdent(x.Name), nil
	case *Literal:
		return c.literal(x)
	case *NamedRef:
		if !scope.Has(x.Name) {
			return "", &UndefinedReferenceError{Name: x.Name}
		}
		return QuoteIdent(x.Name), nil
	case *FuncCall:
		return c.compileCall(x, scope)
	case *BinaryOp:
		op := normalizeOp(x.Op)
		if !c.wl.IsBinaryOp(op) {
			return "", &UnsupportedOperatorError{Op: x.Op}
		}
		l, err := c.CompileExpr(x.Left, scope)
		if err != nil {
			return "", err
		}
		r, err := c.CompileExpr(x.Right, scope)
		if err != nil {
			return "", err
		}
		return "(" + l + " " + op + " " + r + ")", nil
	case *CaseExpr:
		return c.compileCase(x, scope)
	case *Star:
		return "", specErrorf("", "'*' is only valid as the argument of COUNT")
	case nil:
		return "", specErrorf("", "missing expression")
	default:
		return "", specErrorf("", "unsupported expression node %T", e)
	}
}

func (c *Compiler) compileCall(f *FuncCall, scope Scope) (string, error) {
	name := strings.ToUpper(f.Name)
	if !c.wl.IsFunction(name) {
		return "", &UnsupportedFunctionError{Name: f.Name}
	}
	if name == "COUNT" && len(f.Args) == 1 {
		if _, ok := f.Args[0].(*Star); ok {
			return "COUNT(*)", nil
		}
	}
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		s, err := c.CompileExpr(a, scope)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	return c.dialect.funcName(name) + "(" + strings.Join(args, ", ") + ")", nil
}

func (c *Compiler) compileCase(x *CaseExpr, scope Scope) (string, error) {
	if len(x.Whens) == 0 {
		return "", specErrorf("", "CASE needs at least one WHEN")
	}
	var b strings.Builder
	b.WriteString("(CASE")
	for _, w := range x.Whens {
		cond, err := c.CompileCondition(w.Cond)
		if err != nil {
			return "", err
		}
		then, err := c.CompileExpr(w.Then, scope)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHEN " + cond + " THEN " + then)
	}
	if x.Else != nil {
		e, err := c.CompileExpr(x.Else, scope)
		if err != nil {
			return "", err
		}
		b.WriteString(" ELSE " + e)
	}
	b.WriteString(" END)")
	return b.String(), nil
}

var comparisonOps = map[string]struct{}{
	"=": {}, "!=": {}, "<": {}, ">": {}, "<=": {}, ">=": {}, "LIKE": {},
}

// CompileCondition renders a condition tree.
func (c *Compiler) CompileCondition(cond Condition) (string, error) {
	switch x := cond.(type) {
	case *Comparison:
		op := normalizeOp(x.Op)
		if _, ok := comparisonOps[op]; !ok || !c.wl.IsConditionOp(op) {
			return "", &UnsupportedOperatorError{Op: x.Op}
		}
		v, err := c.literalOrNull(x.Value)
		if err != nil {
			return "", err
		}
		return QuoteIdent(x.Column) + " " + op + " " + v, nil
	case *InList:
		op := "IN"
		if x.Negated {
			op = "NOT IN"
		}
		if !c.wl.IsConditionOp(op) {
			return "", &UnsupportedOperatorError{Op: op}
		}
		if len(x.Values) == 0 {
			return "", specErrorf("", "%s requires at least one value", op)
		}
		vals := make([]string, len(x.Values))
		for i, l := range x.Values {
			s, err := c.literalOrNull(l)
			if err != nil {
				return "", err
			}
			vals[i] = s
		}
		return QuoteIdent(x.Column) + " " + op + " (" + strings.Join(vals, ", ") + ")", nil
	case *Between:
		if !c.wl.IsConditionOp("BETWEEN") {
			return "", &UnsupportedOperatorError{Op: "BETWEEN"}
		}
		lo, err := c.literalOrNull(x.Low)
		if err != nil {
			return "", err
		}
		hi, err := c.literalOrNull(x.High)
		if err != nil {
			return "", err
		}
		return QuoteIdent(x.Column) + " BETWEEN " + lo + " AND " + hi, nil
	case *IsNull:
		op := "IS NULL"
		if x.Negated {
			op = "IS NOT NULL"
		}
		if !c.wl.IsConditionOp(op) {
			return "", &UnsupportedOperatorError{Op: op}
		}
		return QuoteIdent(x.Column) + " " + op, nil
	case *And:
		return c.joinConditions(x.Conds, " AND ")
	case *Or:
		return c.joinConditions(x.Conds, " OR ")
	case *Not:
		inner, err := c.CompileCondition(x.Cond)
		if err != nil {
			return "", err
		}
		return "(NOT " + inner + ")", nil
	case nil:
		return "", specErrorf("", "missing condition")
	default:
		return "", specErrorf("", "unsupported condition node %T", cond)
	}
}

func (c *Compiler) literalOrNull(l *Literal) (string, error) {
	if l == nil {
		return "NULL", nil
	}
	return c.literal(l)
}

func (c *Compiler) joinConditions(conds []Condition, sep string) (string, error) {
	if len(conds) == 0 {
		return "", specErrorf("", "empty condition list")
	}
	parts := make([]string, len(conds))
	for i, x := range conds {
		s, err := c.CompileCondition(x)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// Compile renders a whole process document as one SQL statement.
// Output is a pure function of spec and the compiler configuration.
func (c *Compiler) Compile(spec *ProcessSpec) (string, error) {
	if spec == nil || strings.TrimSpace(spec.Source) == "" {
		return "", specErrorf("source", "must be a non-empty table name")
	}

	where := make([]string, len(spec.Where))
	for i, w := range spec.Where {
		s, err := c.CompileCondition(w)
		if err != nil {
			return "", err
		}
		where[i] = s
	}
	whereSQL := strings.Join(where, " AND ")

	scope := NewScope()
	named := make([]string, len(spec.NamedExpressions))
	for i, ne := range spec.NamedExpressions {
		if ne.Name == "" {
			return "", specErrorf("named_expressions["+strconv.Itoa(i)+"].name", "must be a non-empty string")
		}
		s, err := c.CompileExpr(ne.Expr, scope)
		if err != nil {
			return "", err
		}
		named[i] = s + " AS " + QuoteIdent(ne.Name)
		scope = scope.With(ne.Name)
	}

	var lines []string
	from := QuoteIdent(spec.Source)
	if len(named) > 0 {
		inner := "SELECT *, " + strings.Join(named, ", ") + " FROM " + from
		if whereSQL != "" {
			inner += " WHERE " + whereSQL
		}
		lines = append(lines, "WITH base AS ("+inner+")")
		from, whereSQL = "base", ""
	}

	outer := scope.With(spec.GroupBy...)
	selects := make([]string, 0, len(spec.GroupBy)+len(spec.Aggregations))
	for _, g := range spec.GroupBy {
		selects = append(selects, QuoteIdent(g))
	}
	for i, a := range spec.Aggregations {
		s, err := c.compileAggregation(i, a, outer)
		if err != nil {
			return "", err
		}
		selects = append(selects, s)
	}

	lines = append(lines, "SELECT")
	if len(selects) == 0 {
		lines = append(lines, "    *")
	} else {
		lines = append(lines, "    "+strings.Join(selects, ",\n    "))
	}
	lines = append(lines, "FROM "+from)
	if whereSQL != "" {
		lines = append(lines, "WHERE "+whereSQL)
	}
	if len(spec.GroupBy) > 0 {
		cols := make([]string, len(spec.GroupBy))
		for i, g := range spec.GroupBy {
			cols[i] = QuoteIdent(g)
		}
		lines = append(lines, "GROUP BY "+strings.Join(cols, ", "))
	}

	orderSQL, err := c.compileOrderBy(spec.OrderBy, outer)
	if err != nil {
		return "", err
	}
	if spec.Limit != nil && *spec.Limit < 0 {
		return "", specErrorf("limit", "must be a non-negative integer, got %d", *spec.Limit)
	}
	orderSQL, limitSQL := c.dialect.limitClauses(orderSQL, spec.Limit)
	if orderSQL != "" {
		lines = append(lines, orderSQL)
	}
	if limitSQL != "" {
		lines = append(lines, limitSQL)
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Compiler) compileAggregation(i int, a Aggregation, scope Scope) (string, error) {
	p := "aggregations[" + strconv.Itoa(i) + "]"
	fn := strings.ToUpper(strings.TrimSpace(a.Fn))
	if !c.wl.IsAggregate(fn) {
		return "", &UnsupportedFunctionError{Name: a.Fn, Aggregate: true}
	}
	if a.Alias == "" {
		return "", specErrorf(p+".alias", "is required")
	}
	var arg string
	switch a.Expr.(type) {
	case nil, *Star:
		if fn != "COUNT" {
			return "", specErrorf(p+".expr", "%s requires an expression", fn)
		}
		arg = "*"
	default:
		s, err := c.CompileExpr(a.Expr, scope)
		if err != nil {
			return "", err
		}
		arg = s
	}
	return c.dialect.funcName(fn) + "(" + arg + ") AS " + QuoteIdent(a.Alias), nil
}

func (c *Compiler) compileOrderBy(items []OrderItem, scope Scope) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	parts := make([]string, len(items))
	for i, o := range items {
		var s string
		switch {
		case o.Expr != nil:
			var err error
			if s, err = c.CompileExpr(o.Expr, scope); err != nil {
				return "", err
			}
		case o.Position > 0:
			s = strconv.Itoa(o.Position)
		case o.Column != "":
			s = QuoteIdent(o.Column)
		default:
			return "", specErrorf("order_by["+strconv.Itoa(i)+"].expr", "needs a position >= 1, column name or expression")
		}
		if o.Desc {
			s += " DESC"
		} else {
			s += " ASC"
		}
		parts[i] = s
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}

// Compile renders spec with the default whitelist in the ANSI dialect.
func Compile(spec *ProcessSpec) (string, error) {
	return NewCompiler().Compile(spec)
}
