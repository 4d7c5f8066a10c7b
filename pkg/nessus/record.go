package nessus

import (
	"fmt"
	"strings"
	"time"
)

// HostReportName is the record key carrying the enclosing ReportHost name.
const HostReportName = "host-report-name"

// Record is one ReportItem merged with the properties of its host.
//
// Values are string, int, float64, time.Time or []string for vector fields.
// A child tag seen more than once holds a []interface{} of its values in
// document order. A repeated vector field keeps the parts of its first
// value as leading elements, followed by each later []string.
type Record map[string]interface{}

// String returns the value of key as text. Repeated values yield the first one.
func (r Record) String(key string) string {
	switch v := first(r[key]).(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case []string:
		return strings.Join(v, "/")
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer value of key and whether it was present as one.
func (r Record) Int(key string) (int, bool) {
	i, ok := first(r[key]).(int)
	return i, ok
}

// Float returns the float value of key and whether it was present as one.
func (r Record) Float(key string) (float64, bool) {
	f, ok := first(r[key]).(float64)
	return f, ok
}

// Time returns the timestamp value of key and whether it was present as one.
func (r Record) Time(key string) (time.Time, bool) {
	t, ok := first(r[key]).(time.Time)
	return t, ok
}

// Strings flattens a bare or repeated value into its text forms, e.g. every
// cve of a finding.
func (r Record) Strings(key string) []string {
	v, ok := r[key]
	if !ok {
		return nil
	}

	values, ok := v.([]interface{})
	if !ok {
		values = []interface{}{v}
	}

	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, Record{key: value}.String(key))
	}
	return out
}

func first(v interface{}) interface{} {
	if values, ok := v.([]interface{}); ok {
		if len(values) == 0 {
			return nil
		}
		return values[0]
	}
	return v
}
