package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kvesta/nessa/config"
	"github.com/kvesta/nessa/internal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	minSeverity string
	noTable     bool
	cveID       string
)

// parseSeverity accepts a severity name or its numeric level.
func parseSeverity(s string) (int, error) {
	if level, ok := config.SeverityMap[strings.ToLower(s)]; ok {
		return level, nil
	}

	level, err := strconv.Atoi(s)
	if err != nil || level < 0 || level > 4 {
		return 0, fmt.Errorf("unknown severity %q", s)
	}
	return level, nil
}

func report() {
	reportCmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Stream the findings of a .nessus file",
		Long: `Examples:
  # Print the findings and save them to ./output/<date>.json
  $ nessa report scan.nessus

  # Only high and critical findings, exported to sqlite
  $ nessa report scan.nessus --min-severity high -f sqlite -o findings.db

  # Export as YAML without printing the table
  $ nessa report scan.nessus -f yaml -o out/scan.yaml --no-table`,
		Args: ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseSeverity(minSeverity)
			if err != nil {
				return err
			}

			_, err = internal.DoReport(config.Ctx, internal.ReportOptions{
				File:        args[0],
				Output:      viper.GetString("output"),
				Format:      viper.GetString("format"),
				MinSeverity: level,
				NoTable:     noTable,
				Out:         os.Stdout,
			})
			return err
		},
	}

	queryCmd := &cobra.Command{
		Use:   "query DB",
		Short: "Look up a CVE in a sqlite export",
		Long: `Examples:
  $ nessa query findings.db --cve CVE-2019-0708`,
		Args: ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cveID == "" {
				return fmt.Errorf("--cve is required")
			}
			return internal.DoQuery(config.Ctx, args[0], cveID, os.Stdout)
		},
	}

	reportCmd.Flags().StringP("output", "o", "output", "output file location, empty to skip the export")
	reportCmd.Flags().StringP("format", "f", "json", "output format: json, yaml or sqlite")
	reportCmd.Flags().StringVar(&minSeverity, "min-severity", "info", "lowest severity kept: info, low, medium, high, critical or 0-4")
	reportCmd.Flags().BoolVar(&noTable, "no-table", false, "do not print the summary table")

	_ = viper.BindPFlag("output", reportCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("format", reportCmd.Flags().Lookup("format"))

	queryCmd.Flags().StringVar(&cveID, "cve", "", "CVE id to look up")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(queryCmd)
}
