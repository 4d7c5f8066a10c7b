package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kvesta/nessa/config"

	"github.com/olekukonko/tablewriter"
)

// ResolveReportData prints the severity counts and one findings table per host.
func ResolveReportData(w io.Writer, s *Summary) error {

	fmt.Fprintf(w, "\nDetected %s vulnerabilities | "+
		"Critical: %s High: %s Medium: %s Low: %s Info: %d\n\n",
		config.Yellow(s.Total()),
		config.Red(s.Counts[4]),
		config.Pink(s.Counts[3]),
		config.Yellow(s.Counts[2]),
		config.Green(s.Counts[1]),
		s.Counts[0])

	if s.Total() == 0 {
		return nil
	}

	s.sortSeverity()

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Port", "Plugin", "Name", "Score", "Severity", "CVE"})
	table.SetRowLine(true)
	table.SetAutoMergeCellsByColumnIndex([]int{1})

	currentHost := s.Rows[0].Host
	fmt.Fprintf(w, "%s:\n", config.Cyan(currentHost))

	for i, r := range s.Rows {

		if r.Host != currentHost {
			table.Render()
			table.ClearRows()

			currentHost = r.Host
			fmt.Fprintf(w, "\n\n%s:\n", config.Cyan(r.Host))
		}

		score := "-"
		if r.Score > 0 {
			score = fmt.Sprintf("%.1f", r.Score)
		}

		cves := strings.Join(r.CVEs, "\n")
		if cves == "" {
			cves = "-"
		}

		vulnData := []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%d/%s", r.Port, r.Protocol),
			strconv.Itoa(r.PluginID), r.Name, score,
			judgeSeverity(r.Severity), cves,
		}

		table.Append(vulnData)
	}

	table.Render()

	return nil
}

func judgeSeverity(severity int) string {

	switch name := config.SeverityName(severity); name {
	case "critical":
		return config.Red(name)
	case "high":
		return config.Pink(name)
	case "medium":
		return config.Yellow(name)
	case "low":
		return config.Green(name)
	default:
		return name
	}
}
