package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kvesta/nessa/config"
	"github.com/kvesta/nessa/internal/report"
	"github.com/kvesta/nessa/pkg/nessus"

	log "github.com/sirupsen/logrus"
)

type ReportOptions struct {
	File string

	// Output is the export location, "output" for the dated default.
	// An empty Output disables the export.
	Output string
	Format string

	MinSeverity int
	NoTable     bool

	// Out receives the summary table, os.Stdout when nil.
	Out io.Writer
}

// DoReport streams the findings of a .nessus file into the exporter and
// the summary table.
func DoReport(ctx context.Context, opts ReportOptions) (*report.Summary, error) {

	f, err := os.Open(opts.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stream, err := nessus.NewReportStream(f)
	if err != nil {
		return nil, err
	}

	var exporter report.Exporter
	var filename string
	if opts.Output != "" {
		filename, err = report.OutputFile(opts.Output, opts.Format)
		if err != nil {
			return nil, err
		}

		exporter, err = report.NewExporter(opts.Format, filename)
		if err != nil {
			return nil, err
		}
	}

	summary := report.NewSummary()
	skipped := 0

	log.WithField("file", opts.File).Info(config.Green("Begin to parse the report"))

	for {
		if err = ctx.Err(); err != nil {
			break
		}

		var rec nessus.Record
		rec, err = stream.Next()
		if err != nil {
			break
		}

		if severity, _ := rec.Int("severity"); severity < opts.MinSeverity {
			skipped++
			continue
		}

		if exporter != nil {
			if err = exporter.Write(rec); err != nil {
				break
			}
		}

		summary.Add(report.NewRow(rec))
	}

	if errors.Is(err, io.EOF) {
		err = nil
	}

	if exporter != nil {
		if err != nil {
			if aerr := exporter.Abort(); aerr != nil {
				log.WithError(aerr).Warnf("failed to discard %s", filename)
			}
			filename = ""
		} else {
			err = exporter.Close()
		}
	}

	if err != nil {
		return summary, fmt.Errorf("%s: %w", opts.File, err)
	}

	log.WithFields(log.Fields{
		"findings": summary.Total(),
		"hosts":    len(summary.Hosts()),
		"skipped":  skipped,
	}).Debug("report parsed")

	if !opts.NoTable {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}

		if err = report.ResolveReportData(out, summary); err != nil {
			log.Errorf("report error %v", err)
		}
	}

	if filename != "" {
		log.Infof("Output file is saved in: %s", config.Yellow(filename))
	}

	return summary, nil
}

// DoQuery prints the findings of a sqlite export that mention a CVE.
func DoQuery(ctx context.Context, dbPath, cveid string, w io.Writer) error {
	if _, err := os.Stat(dbPath); err != nil {
		return err
	}

	rows, err := report.FindingsByCVE(dbPath, cveid)
	if err != nil {
		return err
	}

	summary := report.NewSummary()
	for _, r := range rows {
		summary.Add(r)
	}

	return report.ResolveReportData(w, summary)
}
