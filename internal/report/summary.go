package report

import (
	"sort"

	"github.com/kvesta/nessa/pkg/nessus"
)

// Row is the compact view of a finding kept for the summary table.
type Row struct {
	Host     string
	Port     int
	Protocol string
	PluginID int
	Name     string
	Severity int
	Score    float64
	CVEs     []string
}

// NewRow extracts the summary columns of a record.
func NewRow(rec nessus.Record) Row {
	r := Row{
		Host:     rec.String(nessus.HostReportName),
		Protocol: rec.String("protocol"),
		Name:     rec.String("pluginName"),
		CVEs:     rec.Strings("cve"),
	}

	r.Port, _ = rec.Int("port")
	r.PluginID, _ = rec.Int("pluginID")
	r.Severity, _ = rec.Int("severity")

	if score, ok := rec.Float("cvss3_base_score"); ok {
		r.Score = score
	} else {
		r.Score, _ = rec.Float("cvss_base_score")
	}

	return r
}

type Summary struct {
	Rows   []Row
	Counts map[int]int

	hosts []string
	seen  map[string]int
}

func NewSummary() *Summary {
	return &Summary{
		Counts: map[int]int{},
		seen:   map[string]int{},
	}
}

func (s *Summary) Add(r Row) {
	if _, ok := s.seen[r.Host]; !ok {
		s.seen[r.Host] = len(s.hosts)
		s.hosts = append(s.hosts, r.Host)
	}

	s.Counts[r.Severity]++
	s.Rows = append(s.Rows, r)
}

func (s *Summary) Total() int {
	return len(s.Rows)
}

// Hosts returns the host names in the order they were first seen.
func (s *Summary) Hosts() []string {
	return s.hosts
}

// sortSeverity groups rows by host, most severe first within a host.
func (s *Summary) sortSeverity() {
	sort.SliceStable(s.Rows, func(i, j int) bool {
		hi, hj := s.seen[s.Rows[i].Host], s.seen[s.Rows[j].Host]
		if hi != hj {
			return hi < hj
		}
		return s.Rows[i].Severity > s.Rows[j].Severity
	})
}
