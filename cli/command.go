package cli

import (
	"fmt"

	"github.com/kvesta/nessa/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var versions = "nessa v0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "nessa [OPTIONS]",
		Short: "Nessus report streaming and Tenable.io scanner management",
		Long: `Nessa streams the findings of Nessus v2 reports into tables, JSON, YAML or sqlite
               and manages the scanners of a Tenable.io container`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(cfgFile); err != nil {
				return err
			}

			return config.SetLogger(
				viper.GetString("log.level"),
				viper.GetString("log.format"),
				viper.GetString("log.file"))
		},
	}

	cfgFile string
)

func Execute() error {

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information and quit",
		Args:  NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(versions)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./.nessa.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("log-file", "", "also append logs to this file")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("log.file", flags.Lookup("log-file"))

	report()
	scanners()

	rootCmd.AddCommand(versionCmd)
	return rootCmd.Execute()
}
