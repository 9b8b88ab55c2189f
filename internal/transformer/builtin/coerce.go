package builtin

import (
	"fmt"
	"math"
	"strconv"

	"tabsql/internal/dataset"
	"tabsql/internal/schema"
)

// Coerce converts a raw dataset into typed columns according to Schema.
//
// The policy is strict: an integer field must carry a width tag and every
// non-null value of an integer or number field must parse, otherwise the
// field fails. Failures of all fields are collected into a single
// *schema.CoercionError. Columns not named by the schema pass through
// untouched and the input dataset is never modified.
type Coerce struct {
	Schema *schema.Schema
}

// Apply runs the coercion.
func (c Coerce) Apply(in *dataset.Dataset) (*dataset.Dataset, error) {
	out := in.Clone()
	var errs schema.ViolationList

	for _, name := range missingRequired(c.Schema, in) {
		errs.Add(schema.Violation{
			Code:    schema.CodeCoerce,
			Field:   name,
			Message: name + ": required column missing",
		})
	}

	for _, f := range c.Schema.Fields {
		col, ok := out.Column(f.Name)
		if !ok {
			continue
		}
		if v, failed := coerceColumn(f, col); failed {
			errs.Add(v)
		}
	}

	if err := errs.CoercionErr(); err != nil {
		return nil, err
	}
	return out, nil
}

// coerceColumn rewrites col in place. col must be a private copy.
func coerceColumn(f schema.Field, col *dataset.Column) (schema.Violation, bool) {
	fail := func(format string, args ...any) (schema.Violation, bool) {
		return schema.Violation{
			Code:    schema.CodeCoerce,
			Field:   f.Name,
			Message: f.Name + ": " + fmt.Sprintf(format, args...),
		}, true
	}

	// Blank text is a value for string fields and missing for numeric ones.
	if col.Kind == dataset.String {
		keepEmpty := f.Type == schema.TypeString
		for i, v := range col.Values {
			col.Values[i] = trimCell(v, keepEmpty)
		}
	}

	switch f.LogicalType {
	case "", schema.LogicalYearMonth, schema.LogicalBooleanInt:
	case schema.LogicalZeroPad7:
		for i, v := range col.Values {
			if v == nil {
				continue
			}
			col.Values[i] = zeroPad(dataset.FormatValue(v), schema.ZeroPadWidth)
		}
		col.Kind = dataset.String
	default:
		return fail("unsupported logicalType %q", f.LogicalType)
	}

	switch f.Type {
	case schema.TypeInteger:
		bits, unsigned, ok := f.Width()
		if !ok {
			if f.PandasType == "" {
				return fail("pandasType required for integer field '%s'", f.Name)
			}
			return fail("unsupported pandasType %q for integer field", f.PandasType)
		}
		bad := offenders{limit: maxPreview}
		for i, v := range col.Values {
			if v == nil {
				continue
			}
			n, ok := toInteger(v, bits, unsigned)
			if !ok {
				bad.add(i, v)
				continue
			}
			col.Values[i] = n
		}
		if !bad.empty() {
			return fail("cannot convert %d value(s) to %s: rows %v, values %s",
				bad.count, f.PandasType, bad.rows, preview(bad.vals))
		}
		col.Kind, col.Width, col.Unsigned = dataset.Integer, bits, unsigned

	case schema.TypeNumber:
		bad := offenders{limit: maxPreview}
		for i, v := range col.Values {
			if v == nil {
				continue
			}
			x, ok := toFloat(v)
			if !ok {
				bad.add(i, v)
				continue
			}
			col.Values[i] = x
		}
		if !bad.empty() {
			return fail("cannot convert %d value(s) to number: rows %v, values %s",
				bad.count, bad.rows, preview(bad.vals))
		}
		col.Kind, col.Width, col.Unsigned = dataset.Number, 0, false

	case schema.TypeString:
		for i, v := range col.Values {
			if v == nil {
				continue
			}
			if _, ok := v.(string); !ok {
				col.Values[i] = dataset.FormatValue(v)
			}
		}
		col.Kind, col.Width, col.Unsigned = dataset.String, 0, false
		if f.HasEnum() {
			col.Categories = append([]string(nil), f.Enum...)
		}
	}
	return schema.Violation{}, false
}

// toInteger parses v as an integer that fits bits (signed or unsigned).
// Integral floats and their text form ("12.0") are accepted.
func toInteger(v any, bits int, unsigned bool) (any, bool) {
	var (
		i      int64
		u      uint64
		neg    bool
		parsed bool
	)
	switch t := v.(type) {
	case int64:
		i, neg, parsed = t, t < 0, true
		u = uint64(t)
	case uint64:
		u, parsed = t, true
		i = int64(t)
		if t > math.MaxInt64 && !unsigned {
			return nil, false
		}
	case float64:
		return floatToInteger(t, bits, unsigned)
	case string:
		if unsigned {
			if x, err := strconv.ParseUint(t, 10, 64); err == nil {
				u, i, parsed = x, int64(x), true
				break
			}
		}
		if x, err := strconv.ParseInt(t, 10, 64); err == nil {
			i, u, neg, parsed = x, uint64(x), x < 0, true
			break
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, false
		}
		return floatToInteger(f, bits, unsigned)
	}
	if !parsed {
		return nil, false
	}

	if unsigned {
		if neg {
			return nil, false
		}
		if bits < 64 && u > (uint64(1)<<bits)-1 {
			return nil, false
		}
		return u, true
	}
	if bits < 64 {
		lo, hi := -(int64(1) << (bits - 1)), (int64(1)<<(bits-1))-1
		if i < lo || i > hi {
			return nil, false
		}
	}
	return i, true
}

func floatToInteger(f float64, bits int, unsigned bool) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, false
	}
	if unsigned {
		if f < 0 || f >= math.Ldexp(1, bits) {
			return nil, false
		}
		return toInteger(uint64(f), bits, true)
	}
	if f < -math.Ldexp(1, bits-1) || f >= math.Ldexp(1, bits-1) {
		return nil, false
	}
	return toInteger(int64(f), bits, false)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
