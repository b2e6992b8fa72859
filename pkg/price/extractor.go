// Package price extracts a normalized last price from provider quote records.
package price

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// Field is the record field holding the regular-session market price.
const Field = "regularMarketPrice"

// Fields are tried in order by Extract.
var Fields = []string{Field, "currentPrice"}

// Extract returns the first numeric price field of record rounded to two
// decimals. ok is false when no field is present or none is numeric.
func Extract(record map[string]any) (float64, bool) {
	for _, field := range Fields {
		v, ok := number(record[field])
		if !ok {
			continue
		}
		return Round(v), true
	}
	return 0, false
}

// Ptr is Extract returning nil for a missing price, which encodes as JSON null.
func Ptr(record map[string]any) *float64 {
	v, ok := Extract(record)
	if !ok {
		return nil
	}
	return &v
}

// Raw returns the regularMarketPrice field verbatim, or nil when absent.
func Raw(record map[string]any) any {
	return record[Field]
}

// Number returns record[field] as a float64. ok is false when the field is
// absent or not numeric.
func Number(record map[string]any, field string) (float64, bool) {
	return number(record[field])
}

// Round rounds v to two decimal places, half away from zero.
func Round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
