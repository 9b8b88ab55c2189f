package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tabsql/internal/document"
)

const docKind = "process"

// LoadProcess reads and parses the process document at path.
// Unreadable files keep their fs error; malformed documents are a
// *document.StructuralError, wrapping a *SpecError when the JSON is valid
// but its content is not.
func LoadProcess(path string) (*ProcessSpec, error) {
	b, err := document.ReadFile(docKind, path)
	if err != nil {
		return nil, err
	}
	return parseProcess(path, b)
}

// DecodeProcess parses a process document from r.
func DecodeProcess(r io.Reader) (*ProcessSpec, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read process spec: %w", err)
	}
	return parseProcess("", b)
}

func parseProcess(path string, b []byte) (*ProcessSpec, error) {
	var doc map[string]any
	if err := document.DecodeObject(docKind, path, b, &doc); err != nil {
		return nil, err
	}
	spec, err := ParseProcess(doc)
	if err != nil {
		return nil, &document.StructuralError{Kind: docKind, Path: path, Message: "invalid content", Err: err}
	}
	return spec, nil
}

// ParseProcess converts a decoded JSON object (numbers as json.Number) into
// a ProcessSpec.
func ParseProcess(doc map[string]any) (*ProcessSpec, error) {
	spec := &ProcessSpec{}

	src, ok := doc["source"].(string)
	if !ok || strings.TrimSpace(src) == "" {
		return nil, specErrorf("source", "must be a non-empty table name")
	}
	spec.Source = src

	where, err := optList(doc, "where")
	if err != nil {
		return nil, err
	}
	for i, w := range where {
		c, err := parseCondition(fmt.Sprintf("where[%d]", i), w)
		if err != nil {
			return nil, err
		}
		spec.Where = append(spec.Where, c)
	}

	named, err := optList(doc, "named_expressions")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(named))
	for i, raw := range named {
		p := fmt.Sprintf("named_expressions[%d]", i)
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, specErrorf(p, "must be an object with name and expr")
		}
		name, ok := obj["name"].(string)
		if !ok || name == "" {
			return nil, specErrorf(p+".name", "must be a non-empty string")
		}
		if _, dup := seen[name]; dup {
			return nil, specErrorf(p+".name", "%q is declared twice", name)
		}
		seen[name] = struct{}{}
		rawExpr, ok := obj["expr"]
		if !ok {
			return nil, specErrorf(p+".expr", "is required")
		}
		e, err := parseExpr(p+".expr", rawExpr)
		if err != nil {
			return nil, err
		}
		spec.NamedExpressions = append(spec.NamedExpressions, NamedExpr{Name: name, Expr: e})
	}

	groupBy, err := optList(doc, "group_by")
	if err != nil {
		return nil, err
	}
	for i, g := range groupBy {
		s, ok := g.(string)
		if !ok || s == "" {
			return nil, specErrorf(fmt.Sprintf("group_by[%d]", i), "must be a column name")
		}
		spec.GroupBy = append(spec.GroupBy, s)
	}

	aggs, err := optList(doc, "aggregations")
	if err != nil {
		return nil, err
	}
	for i, raw := range aggs {
		a, err := parseAggregation(fmt.Sprintf("aggregations[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		spec.Aggregations = append(spec.Aggregations, a)
	}

	order, err := optList(doc, "order_by")
	if err != nil {
		return nil, err
	}
	for i, raw := range order {
		o, err := parseOrderItem(fmt.Sprintf("order_by[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		spec.OrderBy = append(spec.OrderBy, o)
	}

	if raw, ok := doc["limit"]; ok && raw != nil {
		n, ok := raw.(json.Number)
		if !ok {
			return nil, specErrorf("limit", "must be a non-negative integer")
		}
		v, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil || v < 0 {
			return nil, specErrorf("limit", "must be a non-negative integer, got %s", n)
		}
		spec.Limit = &v
	}
	return spec, nil
}

func parseAggregation(p string, raw any) (Aggregation, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Aggregation{}, specErrorf(p, "must be an object with fn, expr and alias")
	}
	fn, ok := obj["fn"].(string)
	if !ok || strings.TrimSpace(fn) == "" {
		return Aggregation{}, specErrorf(p+".fn", "must be a function name")
	}
	alias, ok := obj["alias"].(string)
	if !ok || alias == "" {
		return Aggregation{}, specErrorf(p+".alias", "is required")
	}
	a := Aggregation{Fn: strings.ToUpper(strings.TrimSpace(fn)), Alias: alias}
	if rawExpr, ok := obj["expr"]; ok && rawExpr != nil {
		e, err := parseExpr(p+".expr", rawExpr)
		if err != nil {
			return Aggregation{}, err
		}
		a.Expr = e
	}
	return a, nil
}

func parseOrderItem(p string, raw any) (OrderItem, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return OrderItem{}, specErrorf(p, "must be an object with expr")
	}
	var o OrderItem
	if asc, ok := obj["asc"]; ok && asc != nil {
		b, ok := asc.(bool)
		if !ok {
			return OrderItem{}, specErrorf(p+".asc", "must be a boolean")
		}
		o.Desc = !b
	}

	switch e := obj["expr"].(type) {
	case json.Number:
		pos, err := strconv.Atoi(e.String())
		if err != nil || pos < 1 {
			return OrderItem{}, specErrorf(p+".expr", "position must be an integer >= 1, got %s", e)
		}
		o.Position = pos
	case string:
		if isDigits(e) {
			pos, err := strconv.Atoi(e)
			if err != nil || pos < 1 {
				return OrderItem{}, specErrorf(p+".expr", "position must be an integer >= 1, got %q", e)
			}
			o.Position = pos
			break
		}
		if e == "" {
			return OrderItem{}, specErrorf(p+".expr", "must not be empty")
		}
		o.Column = e
	case map[string]any:
		x, err := parseExpr(p+".expr", e)
		if err != nil {
			return OrderItem{}, err
		}
		o.Expr = x
	case nil:
		return OrderItem{}, specErrorf(p+".expr", "is required")
	default:
		return OrderItem{}, specErrorf(p+".expr", "must be a position, column name or expression")
	}
	return o, nil
}

// ParseExpr converts a decoded JSON value into an expression tree.
func ParseExpr(v any) (Expr, error) { return parseExpr("expr", v) }

// ParseCondition converts a decoded JSON value into a condition tree.
func ParseCondition(v any) (Condition, error) { return parseCondition("cond", v) }

// DecodeExpr parses the JSON text of one expression.
func DecodeExpr(data []byte) (Expr, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	return ParseExpr(v)
}

// DecodeCondition parses the JSON text of one condition.
func DecodeCondition(data []byte) (Condition, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	return ParseCondition(v)
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &SpecError{Message: "invalid JSON: " + err.Error()}
	}
	return v, nil
}

func parseExpr(p string, v any) (Expr, error) {
	switch t := v.(type) {
	case string:
		if t == "*" {
			return &Star{}, nil
		}
		return &ColumnRef{Name: t}, nil
	case map[string]any:
		return parseExprObject(p, t)
	default:
		return nil, specErrorf(p, "unsupported expression format: %s", describe(v))
	}
}

// parseExprObject recognises the object shapes by their tag key, checked in
// a fixed order: col, val, ref, fn, op, case.
func parseExprObject(p string, obj map[string]any) (Expr, error) {
	if raw, ok := obj["col"]; ok {
		name, ok := raw.(string)
		if !ok || name == "" {
			return nil, specErrorf(p+".col", "must be a column name")
		}
		return &ColumnRef{Name: name}, nil
	}
	if raw, ok := obj["val"]; ok {
		return parseLiteral(p+".val", raw)
	}
	if raw, ok := obj["ref"]; ok {
		name, ok := raw.(string)
		if !ok || name == "" {
			return nil, specErrorf(p+".ref", "must be a name")
		}
		return &NamedRef{Name: name}, nil
	}
	if raw, ok := obj["fn"]; ok {
		name, ok := raw.(string)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, specErrorf(p+".fn", "must be a function name")
		}
		args, err := optList(obj, "args")
		if err != nil {
			return nil, prefixed(p, err)
		}
		call := &FuncCall{Name: strings.ToUpper(strings.TrimSpace(name))}
		for i, a := range args {
			e, err := parseExpr(fmt.Sprintf("%s.args[%d]", p, i), a)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, e)
		}
		return call, nil
	}
	if raw, ok := obj["op"]; ok {
		op, ok := raw.(string)
		if !ok || strings.TrimSpace(op) == "" {
			return nil, specErrorf(p+".op", "must be an operator")
		}
		args, ok := obj["args"].([]any)
		if !ok || len(args) != 2 {
			return nil, specErrorf(p+".args", "operator %s needs exactly two args", op)
		}
		left, err := parseExpr(p+".args[0]", args[0])
		if err != nil {
			return nil, err
		}
		right, err := parseExpr(p+".args[1]", args[1])
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Op: normalizeOp(op), Left: left, Right: right}, nil
	}
	if raw, ok := obj["case"]; ok {
		return parseCase(p+".case", raw)
	}
	return nil, specErrorf(p, "unsupported expression format: %s", describe(obj))
}

func parseCase(p string, raw any) (Expr, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, specErrorf(p, "must be an object with whens")
	}
	whens, ok := obj["whens"].([]any)
	if !ok || len(whens) == 0 {
		return nil, specErrorf(p+".whens", "must be a non-empty array")
	}
	c := &CaseExpr{}
	for i, w := range whens {
		wp := fmt.Sprintf("%s.whens[%d]", p, i)
		wo, ok := w.(map[string]any)
		if !ok {
			return nil, specErrorf(wp, "must be an object with when and then")
		}
		cond, err := parseCondition(wp+".when", wo["when"])
		if err != nil {
			return nil, err
		}
		then, ok := wo["then"]
		if !ok {
			return nil, specErrorf(wp+".then", "is required")
		}
		res, err := parseExpr(wp+".then", then)
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, When{Cond: cond, Then: res})
	}
	if raw, ok := obj["else"]; ok {
		e, err := parseExpr(p+".else", raw)
		if err != nil {
			return nil, err
		}
		c.Else = e
	}
	return c, nil
}

func parseCondition(p string, v any) (Condition, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, specErrorf(p, "condition must be an object, got %s", describe(v))
	}
	if raw, ok := obj["all"]; ok {
		conds, err := parseConditionList(p+".all", raw)
		if err != nil {
			return nil, err
		}
		return &And{Conds: conds}, nil
	}
	if raw, ok := obj["any"]; ok {
		conds, err := parseConditionList(p+".any", raw)
		if err != nil {
			return nil, err
		}
		return &Or{Conds: conds}, nil
	}
	if raw, ok := obj["not"]; ok {
		c, err := parseCondition(p+".not", raw)
		if err != nil {
			return nil, err
		}
		return &Not{Cond: c}, nil
	}

	col, ok := obj["column"].(string)
	if !ok || col == "" {
		return nil, specErrorf(p+".column", "must be a column name")
	}
	rawOp, ok := obj["op"].(string)
	if !ok || strings.TrimSpace(rawOp) == "" {
		return nil, specErrorf(p+".op", "must be an operator")
	}
	op := normalizeOp(rawOp)

	switch op {
	case "IS NULL", "IS NOT NULL":
		return &IsNull{Column: col, Negated: op == "IS NOT NULL"}, nil
	case "IN", "NOT IN":
		raw, ok := obj["values"]
		if !ok || raw == nil {
			raw = obj["value"]
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, specErrorf(p, "%s requires list of values", op)
		}
		if len(list) == 0 {
			return nil, specErrorf(p, "%s requires at least one value", op)
		}
		in := &InList{Column: col, Negated: op == "NOT IN"}
		for i, x := range list {
			lit, err := parseLiteral(fmt.Sprintf("%s.values[%d]", p, i), x)
			if err != nil {
				return nil, err
			}
			in.Values = append(in.Values, lit)
		}
		return in, nil
	case "BETWEEN":
		list, ok := obj["value"].([]any)
		if !ok || len(list) != 2 {
			return nil, specErrorf(p+".value", "BETWEEN requires a [low, high] pair")
		}
		lo, err := parseLiteral(p+".value[0]", list[0])
		if err != nil {
			return nil, err
		}
		hi, err := parseLiteral(p+".value[1]", list[1])
		if err != nil {
			return nil, err
		}
		return &Between{Column: col, Low: lo, High: hi}, nil
	default:
		lit, err := parseLiteral(p+".value", obj["value"])
		if err != nil {
			return nil, err
		}
		return &Comparison{Column: col, Op: op, Value: lit}, nil
	}
}

func parseConditionList(p string, raw any) ([]Condition, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, specErrorf(p, "must be a non-empty array of conditions")
	}
	out := make([]Condition, 0, len(list))
	for i, x := range list {
		c, err := parseCondition(fmt.Sprintf("%s[%d]", p, i), x)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseLiteral(p string, v any) (*Literal, error) {
	switch t := v.(type) {
	case nil:
		return &Literal{Kind: LitNull}, nil
	case bool:
		return &Literal{Kind: LitBool, Bool: t}, nil
	case json.Number:
		if _, err := strconv.ParseFloat(t.String(), 64); err != nil {
			return nil, specErrorf(p, "invalid number %s", t)
		}
		return &Literal{Kind: LitNumber, Text: t.String()}, nil
	case float64:
		return &Literal{Kind: LitNumber, Text: strconv.FormatFloat(t, 'f', -1, 64)}, nil
	case string:
		return &Literal{Kind: LitString, Text: t}, nil
	default:
		return nil, specErrorf(p, "literal must be null, boolean, number or string, got %s", describe(v))
	}
}

func optList(obj map[string]any, key string) ([]any, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, specErrorf(key, "must be an array")
	}
	return list, nil
}

func prefixed(p string, err error) error {
	if se, ok := err.(*SpecError); ok {
		return &SpecError{Path: p + "." + se.Path, Message: se.Message}
	}
	return err
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func describe(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if len(b) > 80 {
		return string(b[:77]) + "..."
	}
	return string(b)
}
