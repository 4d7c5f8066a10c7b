package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kvesta/nessa/pkg/nessus"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/json"
)

// Exporter receives the records of a report one at a time. Close completes
// the export; Abort discards it, leaving no partial output behind.
type Exporter interface {
	Write(rec nessus.Record) error
	Close() error
	Abort() error
}

var (
	_ Exporter = (*JSONExporter)(nil)
	_ Exporter = (*YAMLExporter)(nil)
	_ Exporter = (*SQLiteExporter)(nil)
)

var extensions = map[string]string{
	"json":   "json",
	"yaml":   "yaml",
	"sqlite": "db",
}

func exists(path string) bool {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsExist(err) {
			return true
		}

		return false
	}
	return true
}

// OutputFile resolves where an export of the given format is written.
// The value "output" means ./output/<date>.<ext>. Missing parent folders
// are created.
func OutputFile(output, format string) (string, error) {
	ext, ok := extensions[format]
	if !ok {
		return "", fmt.Errorf("unsupported output format %q", format)
	}

	if output == "output" {
		pwd, _ := os.Getwd()
		folder := filepath.Join(pwd, "output")
		if !exists(folder) {
			err := os.MkdirAll(folder, os.FileMode(0755))
			if err != nil {
				return "", err
			}
		}
		nowStamp := time.Now().Format("2006-01-02")
		file := filepath.Join(folder, fmt.Sprintf("%s.%s", nowStamp, ext))

		return file, nil
	}

	folder := filepath.Dir(output)
	if !exists(folder) {
		err := os.MkdirAll(folder, os.FileMode(0755))
		if err != nil {
			return "", err
		}
	}

	return output, nil
}

// NewExporter creates the file at path and returns an exporter of format
// writing to it.
func NewExporter(format, path string) (Exporter, error) {
	if format == "sqlite" {
		return NewSQLiteExporter(path)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	var e Exporter
	switch format {
	case "json":
		e = NewJSONExporter(f)
	case "yaml":
		e = NewYAMLExporter(f)
	default:
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("unsupported output format %q", format)
	}

	return &fileExporter{Exporter: e, f: f, path: path}, nil
}

type fileExporter struct {
	Exporter
	f    *os.File
	path string
}

func (e *fileExporter) Abort() error {
	e.Exporter.Abort()
	e.f.Close()

	return os.Remove(e.path)
}

func (e *fileExporter) Close() error {
	err := e.Exporter.Close()
	if cerr := e.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// JSONExporter writes the records as one JSON array without holding them
// in memory.
type JSONExporter struct {
	w     io.Writer
	count int
}

func NewJSONExporter(w io.Writer) *JSONExporter {
	return &JSONExporter{w: w}
}

func (e *JSONExporter) Write(rec nessus.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	sep := ",\n"
	if e.count == 0 {
		sep = "[\n"
	}
	if _, err = io.WriteString(e.w, sep); err != nil {
		return err
	}
	if _, err = e.w.Write(data); err != nil {
		return err
	}

	e.count++
	return nil
}

func (e *JSONExporter) Close() error {
	end := "\n]\n"
	if e.count == 0 {
		end = "[]\n"
	}
	_, err := io.WriteString(e.w, end)
	return err
}

// Abort leaves the array unterminated.
func (e *JSONExporter) Abort() error {
	return nil
}

// YAMLExporter writes one YAML document per record.
type YAMLExporter struct {
	enc *yaml.Encoder
}

func NewYAMLExporter(w io.Writer) *YAMLExporter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YAMLExporter{enc: enc}
}

func (e *YAMLExporter) Write(rec nessus.Record) error {
	return e.enc.Encode(map[string]interface{}(rec))
}

func (e *YAMLExporter) Close() error {
	return e.enc.Close()
}

func (e *YAMLExporter) Abort() error {
	return nil
}
