package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is one raw report item as decoded from the marketplace API or a spreadsheet row.
type Record map[string]any

// RawReport is an undecoded list of report items. Elements that are not key-value
// structures are counted as malformed during normalization.
type RawReport []any

// dateLayouts are the timestamp formats the marketplace reports use.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
}

// asRecord converts a decoded item into a Record.
func asRecord(raw any) (Record, bool) {
	switch v := raw.(type) {
	case Record:
		return v, true
	case map[string]any:
		return Record(v), true
	case map[string]string:
		rec := make(Record, len(v))
		for k, s := range v {
			rec[k] = s
		}
		return rec, true
	default:
		return nil, false
	}
}

// String returns the first non-empty string value among the given fields.
func (r Record) String(fields ...string) string {
	for _, f := range fields {
		v, ok := r[f]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			s = strconv.Itoa(t)
		case int64:
			s = strconv.FormatInt(t, 10)
		case bool:
			s = strconv.FormatBool(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Number returns the value of the first present, parseable numeric field.
// The second result is false when none of the fields holds a number.
func (r Record) Number(fields ...string) (float64, bool) {
	for _, f := range fields {
		v, ok := r[f]
		if !ok || v == nil {
			continue
		}
		if n, ok := toFloat(v); ok {
			return n, true
		}
	}
	return 0, false
}

// Float is Number with absent fields read as zero.
func (r Record) Float(fields ...string) float64 {
	n, _ := r.Number(fields...)
	return n
}

// Sum adds every present numeric field. Used for cost components that are
// reported as separate columns.
func (r Record) Sum(fields ...string) float64 {
	var total float64
	for _, f := range fields {
		if n, ok := r.Number(f); ok {
			total += n
		}
	}
	return total
}

// Bool reads a boolean flag; strings "true"/"1" count as set.
func (r Record) Bool(fields ...string) bool {
	for _, f := range fields {
		switch v := r[f].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil && b {
				return true
			}
		case float64:
			if v != 0 {
				return true
			}
		case json.Number:
			if n, err := v.Float64(); err == nil && n != 0 {
				return true
			}
		}
	}
	return false
}

// Time parses the first present timestamp field.
func (r Record) Time(fields ...string) (time.Time, bool) {
	for _, f := range fields {
		switch v := r[f].(type) {
		case time.Time:
			if !v.IsZero() {
				return v, true
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		// spreadsheet exports use "1 234,56"
		s := strings.TrimSpace(t)
		s = strings.ReplaceAll(s, "\u00a0", "")
		s = strings.ReplaceAll(s, " ", "")
		s = strings.ReplaceAll(s, ",", ".")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
