package utils

import (
	"database/sql"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

//ToFiniteFloat coerces a raw telemetry value to a float. The result is invalid when the value is
//not numeric or not finite.
func ToFiniteFloat(raw interface{}) sql.NullFloat64 {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		return ParseFiniteFloat(v.String())
	case string:
		return ParseFiniteFloat(v)
	default:
		return sql.NullFloat64{}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

//ParseFiniteFloat parses s, ignoring surrounding blanks. NaN and infinities are invalid.
func ParseFiniteFloat(s string) sql.NullFloat64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

//FormatFloat renders f the way existing table cells were written: 12 significant digits (%.12g)
//and a trailing ".0" when the result has neither a fraction nor an exponent.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', 12, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
