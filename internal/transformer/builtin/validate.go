package builtin

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"tabsql/internal/dataset"
	"tabsql/internal/schema"
)

// Validate checks a coerced dataset against Schema: required columns,
// nullability, pattern, enum, numeric range and primary-key uniqueness.
// Every violation found in one pass is reported together in a
// *schema.ValidationError. The dataset is returned unchanged.
type Validate struct {
	Schema *schema.Schema
}

// Apply validates in and returns it when no violation is found.
func (v Validate) Apply(in *dataset.Dataset) (*dataset.Dataset, error) {
	if err := v.Check(in).ValidationErr(); err != nil {
		return nil, err
	}
	return in, nil
}

// Check returns every violation of ds without building an error.
func (v Validate) Check(ds *dataset.Dataset) schema.ViolationList {
	var errs schema.ViolationList

	for _, f := range v.Schema.Fields {
		col, ok := ds.Column(f.Name)
		if !ok {
			if f.Required {
				errs.Addf(schema.CodeSchema, f.Name, "required column missing: %s", f.Name)
			}
			continue
		}
		checkNulls(&errs, f, col)
		checkPattern(&errs, f, col)
		checkEnum(&errs, f, col)
		checkRange(&errs, f, col)
	}

	if len(v.Schema.PrimaryKey) > 0 {
		checkPrimaryKey(&errs, v.Schema.PrimaryKey, ds)
	}
	return errs
}

func checkNulls(errs *schema.ViolationList, f schema.Field, col *dataset.Column) {
	if f.IsNullable() {
		return
	}
	bad := offenders{limit: maxPreview}
	for i, x := range col.Values {
		if x == nil {
			bad.add(i, nil)
		}
	}
	if bad.empty() {
		return
	}
	errs.Add(schema.Violation{
		Code:    schema.CodeNull,
		Field:   f.Name,
		Message: fmt.Sprintf("%s has nulls at rows %v (showing up to %d)", f.Name, bad.rows, maxPreview),
		Rows:    bad.rows,
	})
}

// checkPattern matches from the start of the value; nulls match as "".
func checkPattern(errs *schema.ViolationList, f schema.Field, col *dataset.Column) {
	if f.Pattern == "" || col.Kind != dataset.String {
		return
	}
	re, err := regexp.Compile(`^(?:` + f.Pattern + `)`)
	if err != nil {
		errs.Addf(schema.CodePattern, f.Name, "%s has invalid pattern %s: %v", f.Name, f.Pattern, err)
		return
	}
	bad := offenders{limit: maxPreview}
	for i, x := range col.Values {
		s, _ := x.(string)
		if !re.MatchString(s) {
			bad.add(i, x)
		}
	}
	if bad.empty() {
		return
	}
	errs.Add(schema.Violation{
		Code:  schema.CodePattern,
		Field: f.Name,
		Message: fmt.Sprintf("%s failed pattern %s: rows %v, values %s",
			f.Name, f.Pattern, bad.rows, preview(bad.vals)),
		Rows:   bad.rows,
		Values: bad.vals,
	})
}

// checkEnum compares text for string columns and numbers for numeric ones,
// so 1.0 is a member of [1, 2].
func checkEnum(errs *schema.ViolationList, f schema.Field, col *dataset.Column) {
	if !f.HasEnum() {
		return
	}
	member := textMember(f.Enum)
	if col.Kind == dataset.Integer || col.Kind == dataset.Number {
		member = newNumberSet(f.Enum).has
	}
	bad := offenders{limit: maxPreview}
	for i, x := range col.Values {
		if x == nil {
			continue
		}
		if !member(x) {
			bad.add(i, x)
		}
	}
	if bad.empty() {
		return
	}
	errs.Add(schema.Violation{
		Code:  schema.CodeEnum,
		Field: f.Name,
		Message: fmt.Sprintf("%s not in %s: rows %v, values %s",
			f.Name, preview(stringsToAny(f.Enum)), bad.rows, preview(bad.vals)),
		Rows:   bad.rows,
		Values: bad.vals,
	})
}

func textMember(enum []string) func(any) bool {
	allowed := make(map[string]struct{}, len(enum))
	for _, e := range enum {
		allowed[e] = struct{}{}
	}
	return func(x any) bool {
		_, ok := allowed[dataset.FormatValue(x)]
		return ok
	}
}

// numberSet holds the numeric members of an enum in each value domain.
// Entries that are not numbers match nothing.
type numberSet struct {
	ints   map[int64]struct{}
	uints  map[uint64]struct{}
	floats map[float64]struct{}
}

func newNumberSet(enum []string) numberSet {
	s := numberSet{
		ints:   map[int64]struct{}{},
		uints:  map[uint64]struct{}{},
		floats: map[float64]struct{}{},
	}
	for _, e := range enum {
		e = strings.TrimSpace(e)
		i, ierr := strconv.ParseInt(e, 10, 64)
		if ierr == nil {
			s.ints[i] = struct{}{}
		}
		u, uerr := strconv.ParseUint(e, 10, 64)
		if uerr == nil {
			s.uints[u] = struct{}{}
		}
		n, err := strconv.ParseFloat(e, 64)
		if err != nil {
			continue
		}
		s.floats[n] = struct{}{}
		// "1.0" and "1e3" name integers too; decimal integer text was
		// already taken exactly above.
		if ierr != nil && uerr != nil && n == math.Trunc(n) {
			if n >= -(1<<63) && n < 1<<63 {
				s.ints[int64(n)] = struct{}{}
			}
			if n >= 0 && n < 1<<64 {
				s.uints[uint64(n)] = struct{}{}
			}
		}
	}
	return s
}

func (s numberSet) has(x any) bool {
	var ok bool
	switch v := x.(type) {
	case int64:
		_, ok = s.ints[v]
	case uint64:
		_, ok = s.uints[v]
	case float64:
		_, ok = s.floats[v]
	}
	return ok
}

func checkRange(errs *schema.ViolationList, f schema.Field, col *dataset.Column) {
	if col.Kind != dataset.Integer && col.Kind != dataset.Number {
		return
	}
	report := func(bound float64, op string, outside func(cmp int) bool) {
		bad := offenders{limit: maxPreview}
		for i, x := range col.Values {
			if x == nil {
				continue
			}
			c, ok := compareBound(x, bound)
			if ok && outside(c) {
				bad.add(i, x)
			}
		}
		if bad.empty() {
			return
		}
		errs.Add(schema.Violation{
			Code:  schema.CodeRange,
			Field: f.Name,
			Message: fmt.Sprintf("%s %s %s: rows %v, values %s",
				f.Name, op, strconv.FormatFloat(bound, 'f', -1, 64), bad.rows, preview(bad.vals)),
			Rows:   bad.rows,
			Values: bad.vals,
		})
	}
	if f.Min != nil {
		report(*f.Min, "<", func(c int) bool { return c < 0 })
	}
	if f.Max != nil {
		report(*f.Max, ">", func(c int) bool { return c > 0 })
	}
}

// compareBound returns -1, 0 or +1 as x is below, at or above bound.
// Integers are compared against the bound in their own domain, so values
// past 2^53 are not rounded onto it.
func compareBound(x any, bound float64) (int, bool) {
	switch v := x.(type) {
	case int64:
		fl := math.Floor(bound)
		switch {
		case fl >= 1<<63:
			return -1, true
		case fl < -(1 << 63):
			return 1, true
		}
		return compareFloored(cmp.Compare(v, int64(fl)), fl == bound), true
	case uint64:
		if bound < 0 {
			return 1, true
		}
		fl := math.Floor(bound)
		if fl >= 1<<64 {
			return -1, true
		}
		return compareFloored(cmp.Compare(v, uint64(fl)), fl == bound), true
	}
	n, ok := toFloat(x)
	if !ok {
		return 0, false
	}
	switch {
	case n < bound:
		return -1, true
	case n > bound:
		return 1, true
	}
	return 0, true
}

// compareFloored turns a comparison against floor(bound) into one against
// bound. A value equal to the floor of a fractional bound lies below it.
func compareFloored(c int, integral bool) int {
	if c == 0 && !integral {
		return -1
	}
	return c
}

func checkPrimaryKey(errs *schema.ViolationList, keys []string, ds *dataset.Dataset) {
	dup, err := DuplicateRows(ds, keys)
	if err != nil {
		errs.Addf(schema.CodePrimaryKey, "", "cannot check %v: %v", keys, err)
		return
	}
	if len(dup) == 0 {
		return
	}
	if len(dup) > maxKeyPreview {
		dup = dup[:maxKeyPreview]
	}
	errs.Add(schema.Violation{
		Code:    schema.CodePrimaryKey,
		Message: fmt.Sprintf("duplicates on %v: rows %v, keys %s", keys, dup, keyPreview(ds, keys, dup)),
		Rows:    dup,
	})
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
