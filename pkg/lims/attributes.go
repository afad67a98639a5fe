package lims

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Attributes holds user-defined fields attached to an execution, artifact or
// sample. Values decoded from JSON are strings, float64 or bool.
type Attributes map[string]any

// Lookup returns the raw value stored under key; nil values count as absent.
func (a Attributes) Lookup(key string) (any, bool) {
	if a == nil || key == "" {
		return nil, false
	}
	v, ok := a[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns the value under key rendered as a string. Empty strings are
// reported as absent.
func (a Attributes) String(key string) (string, bool) {
	v, ok := a.Lookup(key)
	if !ok {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	case time.Time:
		s = t.Format(time.DateOnly)
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// Float returns the numeric value under key.
func (a Attributes) Float(key string) (float64, bool) {
	v, ok := a.Lookup(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// Bool returns the boolean value under key. String values "true", "yes" and
// "1" are accepted case-insensitively.
func (a Attributes) Bool(key string) (bool, bool) {
	v, ok := a.Lookup(key)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	case float64:
		return t != 0, true
	}
	return false, false
}

// Date returns the value under key as a timestamp. Date-only values are
// normalized to midnight UTC.
func (a Attributes) Date(key string) (time.Time, bool) {
	v, ok := a.Lookup(key)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		d, err := ParseDate(t)
		return d, err == nil
	}
	return time.Time{}, false
}

// Clone returns a shallow copy of the attributes.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses LIMS date values. Date-only inputs yield midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// Midnight truncates t to the start of its UTC calendar day.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
