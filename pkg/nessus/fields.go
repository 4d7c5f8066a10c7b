package nessus

import (
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindVector
	kindFloat
	kindTime
	kindInt
)

var fieldKinds = map[string]fieldKind{
	"cvss_vector":           kindVector,
	"cvss_temporal_vector":  kindVector,
	"cvss3_vector":          kindVector,
	"cvss3_temporal_vector": kindVector,

	"cvss_base_score":      kindFloat,
	"cvss_temporal_score":  kindFloat,
	"cvss3_base_score":     kindFloat,
	"cvss3_temporal_score": kindFloat,

	"first_found":              kindTime,
	"last_found":               kindTime,
	"plugin_modification_date": kindTime,
	"plugin_publication_date":  kindTime,
	"patch_publication_date":   kindTime,
	"vuln_publication_date":    kindTime,
	"HOST_END":                 kindTime,
	"HOST_START":               kindTime,

	"port":     kindInt,
	"pluginID": kindInt,
	"severity": kindInt,
}

// normalize converts the raw text of field name into its declared type.
// Fields without a declaration are returned unchanged.
func normalize(name, value string) (interface{}, error) {
	switch fieldKinds[name] {
	case kindVector:
		return strings.Split(value, "/"), nil

	case kindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, &FieldParseError{Field: name, Value: value, Err: err}
		}
		return f, nil

	case kindTime:
		t, err := dateparse.ParseAny(strings.TrimSpace(value))
		if err != nil {
			return nil, &FieldParseError{Field: name, Value: value, Err: err}
		}
		return t, nil

	case kindInt:
		i, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, &FieldParseError{Field: name, Value: value, Err: err}
		}
		return i, nil
	}

	return value, nil
}
