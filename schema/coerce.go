package schema

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/stevemurr/jsonsqlite/document"
)

// Coerce converts a scalar value towards the declared type of the column it
// is written to. A conversion happens only when it loses nothing; otherwise
// the value is passed through unchanged and the storage engine keeps it
// under its own typing rules. Declared types are never changed.
//
//	BOOLEAN  bool; 0/1; "true"/"false"
//	INTEGER  int; bool as 0/1; whole float; base-10 integer string
//	REAL     float; int; bool as 0/1; numeric string
//	TEXT     string; numbers and bools formatted
func Coerce(v document.Value, declared string) any {
	raw := v.Scalar()
	if raw == nil {
		return nil
	}
	switch Type(strings.ToUpper(declared)) {
	case Boolean:
		return toBoolean(v, raw)
	case Integer:
		return toInteger(v, raw)
	case Real:
		return toReal(v, raw)
	case Text:
		return toText(v, raw)
	default:
		return raw
	}
}

func toBoolean(v document.Value, raw any) any {
	switch v.Kind() {
	case document.Int:
		if i := v.Int(); i == 0 || i == 1 {
			return i == 1
		}
	case document.String:
		if b, err := cast.ToBoolE(v.Text()); err == nil {
			return b
		}
	}
	return raw
}

func toInteger(v document.Value, raw any) any {
	switch v.Kind() {
	case document.Bool:
		return cast.ToInt64(v.Bool())
	case document.Float:
		f := v.Float()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
	case document.String:
		if i, err := strconv.ParseInt(strings.TrimSpace(v.Text()), 10, 64); err == nil {
			return i
		}
	}
	return raw
}

func toReal(v document.Value, raw any) any {
	switch v.Kind() {
	case document.Bool, document.Int:
		return cast.ToFloat64(raw)
	case document.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64); err == nil {
			return f
		}
	}
	return raw
}

func toText(v document.Value, raw any) any {
	if v.Kind() == document.Bool {
		if v.Bool() {
			return "1"
		}
		return "0"
	}
	if s, err := cast.ToStringE(raw); err == nil {
		return s
	}
	return raw
}
