package utils

import (
	"fmt"
	"strings"

	"meterdata-etl/config"
)

//BuildRowKey joins the values of fields, in order, with the row key separator.
//Every field must be resolvable through lookup.
func BuildRowKey(fields []string, lookup func(field string) (string, bool)) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("row key has no fields")
	}
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		value, ok := lookup(field)
		if !ok {
			return "", fmt.Errorf("row key field %q is not present on the record", field)
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, config.GetRowKeySeparator()), nil
}

//Bucket returns (timestampSeconds / 100) mod 100 using floor division, the load distributing
//partition existing tables were written with. It is not reversible to a calendar period.
func Bucket(timestampSeconds int64) int64 {
	q := timestampSeconds / 100
	if timestampSeconds%100 != 0 && timestampSeconds < 0 {
		q--
	}
	b := q % 100
	if b < 0 {
		b += 100
	}
	return b
}
