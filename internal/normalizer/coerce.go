package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// toInt reads m[key] as a number the way a loosely typed client would: numeric strings
// parse, booleans are 1/0, null and "" are 0. An absent key, an object or an unparseable
// value is not a number. Numbers are rounded half away from zero and clamped to [lo, hi].
func toInt(m map[string]interface{}, key string, lo, hi int) (int, bool) {
	v, present := m[key]
	if !present {
		return 0, false
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	r := math.Round(f)
	if r < float64(lo) {
		return lo, true
	}
	if r > float64(hi) {
		return hi, true
	}
	return int(r), true
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		return parseNumeric(t)
	case []interface{}:
		switch len(t) {
		case 0:
			return 0, true
		case 1:
			if t[0] == nil {
				return 0, true
			}
			if _, isBool := t[0].(bool); isBool {
				return 0, false
			}
			return parseNumeric(jsString(t[0]))
		}
	}
	return 0, false
}

// parseNumeric accepts decimal, exponent and 0x/0o/0b integer literals surrounded by space.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	if strings.ContainsRune(s, '_') {
		return 0, false
	}
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			n, err := strconv.ParseUint(s, 0, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}
	lower := strings.ToLower(strings.TrimLeft(s, "+-"))
	if strings.HasPrefix(lower, "inf") || strings.HasPrefix(lower, "nan") || strings.HasPrefix(lower, "0x") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// toText returns v as display text. Falsy values (null, false, "", 0) are not text.
func toText(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case bool:
		if !t {
			return "", false
		}
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		if t == 0 || math.IsNaN(t) {
			return "", false
		}
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return "", false
		}
	}
	return jsString(v), true
}

// jsString renders any decoded JSON value as a string. Objects and arrays are re-encoded.
func jsString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case json.Number:
		return numberString(t)
	default:
		b, err := json.Marshal(plainNumbers(t))
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// numberString formats a decoded literal as a number, so 1.50 reads 1.5 and literals beyond
// float64 range read Infinity.
func numberString(n json.Number) string {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil && !math.IsInf(f, 0) {
		return n.String()
	}
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return formatNumber(f)
}

// plainNumbers converts json.Number leaves to float64 before re-encoding. Non-finite values
// encode as null.
func plainNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return nil
		}
		return f
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = plainNumbers(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainNumbers(e)
		}
		return out
	}
	return v
}

// formatNumber prints the shortest representation, with exponents only for very large or
// very small magnitudes.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	// strconv pads the exponent to two digits: 1e-07 becomes 1e-7.
	if i := strings.Index(s, "e"); i >= 0 {
		mant, exp := s[:i], s[i+1:]
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		s = mant + "e" + sign + digits
	}
	return s
}
