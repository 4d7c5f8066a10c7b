package report

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kvesta/nessa/pkg/nessus"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/json"
)

const sampleReport = "../../pkg/nessus/testdata/sample.nessus"

func sampleRecords(t *testing.T) []nessus.Record {
	t.Helper()

	records := []nessus.Record{}
	err := nessus.ReadFile(sampleReport, func(rec nessus.Record) error {
		records = append(records, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	return records
}

func TestNewRow(t *testing.T) {
	records := sampleRecords(t)

	tests := []struct {
		name string
		rec  nessus.Record
		want Row
	}{
		{
			name: "info",
			rec:  records[0],
			want: Row{Host: "192.168.0.10", Port: 0, Protocol: "tcp", PluginID: 19506,
				Name: "Nessus Scan Information", Severity: 0},
		},
		{
			name: "cvss2",
			rec:  records[1],
			want: Row{Host: "192.168.0.10", Port: 443, Protocol: "tcp", PluginID: 42873,
				Name: "SSL Medium Strength Cipher Suites Supported (SWEET32)", Severity: 2, Score: 5.0,
				CVEs: []string{"CVE-2016-2183", "CVE-2016-6329"}},
		},
		{
			name: "cvss3",
			rec:  records[2],
			want: Row{Host: "web01.example.com", Port: 3389, Protocol: "tcp", PluginID: 125313,
				Name: "Microsoft RDP RCE (CVE-2019-0708) (BlueKeep)", Severity: 4, Score: 9.8,
				CVEs: []string{"CVE-2019-0708"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRow(tt.rec); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewRow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	s := NewSummary()
	s.Add(Row{Host: "b", Severity: 1, PluginID: 1})
	s.Add(Row{Host: "a", Severity: 4, PluginID: 2})
	s.Add(Row{Host: "b", Severity: 3, PluginID: 3})
	s.Add(Row{Host: "b", Severity: 1, PluginID: 4})

	assert.Equal(t, 4, s.Total())
	assert.Equal(t, map[int]int{1: 2, 3: 1, 4: 1}, s.Counts)
	assert.Equal(t, []string{"b", "a"}, s.Hosts())

	s.sortSeverity()

	ids := []int{}
	for _, r := range s.Rows {
		ids = append(ids, r.PluginID)
	}
	assert.Equal(t, []int{3, 1, 4, 2}, ids)
}

func TestResolveReportData(t *testing.T) {
	color.NoColor = true

	s := NewSummary()
	for _, rec := range sampleRecords(t) {
		s.Add(NewRow(rec))
	}

	var buf bytes.Buffer
	require.NoError(t, ResolveReportData(&buf, s))

	out := buf.String()
	assert.Contains(t, out, "Detected 3 vulnerabilities | Critical: 1 High: 0 Medium: 1 Low: 0 Info: 1")
	assert.Contains(t, out, "192.168.0.10:")
	assert.Contains(t, out, "web01.example.com:")
	assert.Contains(t, out, "CVE-2019-0708")
	assert.Contains(t, out, "443/tcp")
	assert.Less(t, strings.Index(out, "192.168.0.10:"), strings.Index(out, "web01.example.com:"))
}

func TestResolveReportDataEmpty(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, ResolveReportData(&buf, NewSummary()))
	assert.Contains(t, buf.String(), "Detected 0 vulnerabilities")
	assert.NotContains(t, buf.String(), "PLUGIN")
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONExporter(&buf)
	for _, rec := range sampleRecords(t) {
		require.NoError(t, e.Write(rec))
	}
	require.NoError(t, e.Close())

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 3)

	assert.Equal(t, "192.168.0.10", got[0][nessus.HostReportName])
	assert.Equal(t, "2020-01-23T11:42:22Z", got[0]["HOST_START"])
	assert.Equal(t, []interface{}{"CVE-2016-2183", "CVE-2016-6329"}, got[1]["cve"])
}

func TestJSONExporterEmpty(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONExporter(&buf)
	require.NoError(t, e.Close())
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLExporter(t *testing.T) {
	var buf bytes.Buffer
	e := NewYAMLExporter(&buf)
	for _, rec := range sampleRecords(t) {
		require.NoError(t, e.Write(rec))
	}
	require.NoError(t, e.Close())

	dec := yaml.NewDecoder(&buf)
	docs := []map[string]interface{}{}
	for {
		doc := map[string]interface{}{}
		if err := dec.Decode(&doc); err != nil {
			break
		}
		docs = append(docs, doc)
	}

	require.Len(t, docs, 3)
	assert.Equal(t, "web01.example.com", docs[2][nessus.HostReportName])
	assert.Equal(t, 125313, docs[2]["pluginID"])
}

func TestSQLiteExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.db")

	e, err := NewSQLiteExporter(path)
	require.NoError(t, err)

	records := sampleRecords(t)
	for _, rec := range records {
		require.NoError(t, e.Write(rec))
	}
	// duplicates are dropped
	require.NoError(t, e.Write(records[1]))
	require.NoError(t, e.Close())

	rows, err := FindingsByCVE(path, "CVE-2016-6329")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 42873, rows[0].PluginID)
	assert.Equal(t, []string{"CVE-2016-2183", "CVE-2016-6329"}, rows[0].CVEs)

	rows, err = FindingsByCVE(path, "CVE-2016-63")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func finding(host string, port int) nessus.Record {
	return nessus.Record{
		nessus.HostReportName: host,
		"port":                port,
		"protocol":            "tcp",
		"pluginID":            11219,
		"pluginName":          "Nessus SYN scanner",
		"severity":            2,
		"cve":                 "CVE-2020-0001",
	}
}

func TestSQLiteExporterDistinctHosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.db")

	e, err := NewSQLiteExporter(path)
	require.NoError(t, err)

	// host and port run together into the same digits
	require.NoError(t, e.Write(finding("10.0.0.1", 80)))
	require.NoError(t, e.Write(finding("10.0.0.18", 0)))
	require.NoError(t, e.Close())

	rows, err := FindingsByCVE(path, "CVE-2020-0001")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "10.0.0.1", rows[0].Host)
	assert.Equal(t, "10.0.0.18", rows[1].Host)
}

func TestExporterAbort(t *testing.T) {
	dir := t.TempDir()

	for _, format := range []string{"json", "yaml", "sqlite"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "aborted."+format)

			e, err := NewExporter(format, path)
			require.NoError(t, err)
			require.NoError(t, e.Write(finding("10.0.0.1", 80)))
			require.NoError(t, e.Abort())

			assert.False(t, exists(path))
		})
	}
}

func TestSQLiteExporterAbortKeepsEarlierExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.db")

	e, err := NewSQLiteExporter(path)
	require.NoError(t, err)
	require.NoError(t, e.Write(finding("10.0.0.1", 80)))
	require.NoError(t, e.Close())

	e, err = NewSQLiteExporter(path)
	require.NoError(t, err)
	require.NoError(t, e.Write(finding("10.0.0.2", 80)))
	require.NoError(t, e.Abort())

	rows, err := FindingsByCVE(path, "CVE-2020-0001")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10.0.0.1", rows[0].Host)
}

func TestOutputFile(t *testing.T) {
	dir := t.TempDir()

	type args struct {
		output string
		format string
	}
	tests := []struct {
		name    string
		args    args
		want    string
		wantErr bool
	}{
		{
			name: "nestedFolder",
			args: args{output: filepath.Join(dir, "a", "b", "report.json"), format: "json"},
			want: filepath.Join(dir, "a", "b", "report.json"),
		},
		{
			name:    "badFormat",
			args:    args{output: filepath.Join(dir, "report.xml"), format: "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OutputFile(tt.args.output, tt.args.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("OutputFile() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("OutputFile() = %v, want %v", got, tt.want)
			}
			if !tt.wantErr && !exists(filepath.Dir(got)) {
				t.Errorf("folder of %s was not created", got)
			}
		})
	}
}

func TestNewExporter(t *testing.T) {
	dir := t.TempDir()

	for _, format := range []string{"json", "yaml", "sqlite"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "out."+format)

			e, err := NewExporter(format, path)
			require.NoError(t, err)
			require.NoError(t, e.Write(sampleRecords(t)[2]))
			require.NoError(t, e.Close())

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.NotZero(t, info.Size())
		})
	}

	_, err := NewExporter("csv", filepath.Join(dir, "out.csv"))
	assert.Error(t, err)
	assert.False(t, exists(filepath.Join(dir, "out.csv")))
}
