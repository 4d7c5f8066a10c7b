package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kvesta/nessa/config"
	"github.com/kvesta/nessa/pkg/tio"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	forcePluginUpdate bool
	forceUIUpdate     bool
	finishUpdate      bool
	registrationCode  string
	awsInterval       int
)

func newClient() (*tio.Client, error) {
	access, secret := viper.GetString("tio.access_key"), viper.GetString("tio.secret_key")
	if access == "" || secret == "" {
		return nil, fmt.Errorf("missing API keys, set %s_TIO_ACCESS_KEY and %s_TIO_SECRET_KEY",
			config.EnvPrefix, config.EnvPrefix)
	}

	return tio.NewClient(viper.GetString("tio.url"), access, secret), nil
}

func printScanners(w io.Writer, scanners []tio.Scanner) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Type", "Status", "Engine", "Linked"})

	for _, sc := range scanners {
		status := sc.Status
		if status == "on" {
			status = config.Green(status)
		} else {
			status = config.Red(status)
		}

		table.Append([]string{
			strconv.Itoa(sc.ID), sc.Name, sc.Type, status,
			sc.EngineVersion, strconv.FormatBool(sc.Linked),
		})
	}

	table.Render()
}

func printYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// scannerRun wraps a subcommand body taking the scanner id as first argument.
func scannerRun(fn func(api *tio.ScannersAPI, id int, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		return fn(client.Scanners(), id, args[1:])
	}
}

func scanners() {
	scannersCmd := &cobra.Command{
		Use:   "scanners",
		Short: "Manage the scanners of a Tenable.io container",
		Long: `Examples:
  # List the scanners
  $ nessa scanners list

  # Pause a scan running on scanner 7
  $ nessa scanners control 7 <scan uuid> pause

  # Scanners with an engine older than 10.0.0
  $ nessa scanners outdated 10.0.0`,
		Args: NoArgs,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the scanners",
		Args:  NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			list, err := client.Scanners().List(config.Ctx)
			if err != nil {
				return err
			}

			printScanners(os.Stdout, list)
			return nil
		},
	}

	detailsCmd := &cobra.Command{
		Use:   "details ID",
		Short: "Show the details of a scanner",
		Args:  ExactArgs(1),
		RunE: scannerRun(func(api *tio.ScannersAPI, id int, _ []string) error {
			sc, err := api.Details(config.Ctx, id)
			if err != nil {
				return err
			}
			return printYAML(os.Stdout, sc)
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a scanner",
		Args:  ExactArgs(1),
		RunE: scannerRun(func(api *tio.ScannersAPI, id int, _ []string) error {
			if err := api.Delete(config.Ctx, id); err != nil {
				return err
			}
			log.Infof("Scanner %s deleted", config.Yellow(id))
			return nil
		}),
	}

	editCmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Request updates of a scanner",
		Args:  ExactArgs(1),
		RunE: scannerRun(func(api *tio.ScannersAPI, id int, _ []string) error {
			return api.Edit(config.Ctx, id, tio.ScannerSettings{
				ForcePluginUpdate: forcePluginUpdate,
				ForceUIUpdate:     forceUIUpdate,
				FinishUpdate:      finishUpdate,
				RegistrationCode:  registrationCode,
				AWSUpdateInterval: awsInterval,
			})
		}),
	}

	keyCmd := &cobra.Command{
		Use:   "key ID",
		Short: "Print the key of a scanner",
		Args:  ExactArgs(1),
		RunE: scannerRun(func(api *tio.ScannersAPI, id int, _ []string) error {
			key, err := api.Key(config.Ctx, id)
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		}),
	}

	scansCmd := &cobra.Command{
		Use:   "scans ID",
		Short: "List the scans running on a scanner",
		Args:  ExactArgs(1),
		RunE: scannerRun(func(api *tio.ScannersAPI, id int, _ []string) error {
			scans, err := api.Scans(config.Ctx, id)
			if err != nil {
				return err
			}
			return printYAML(os.Stdout, scans)
		}),
	}

	awsCmd := &cobra.Command{
		Use:   "aws-targets ID",
		Short: "List the AWS targets of a scanner",
		Args:  ExactArgs(1),
		RunE: scannerRun(func(api *tio.ScannersAPI, id int, _ []string) error {
			targets, err := api.AWSTargets(config.Ctx, id)
			if err != nil {
				return err
			}
			return printYAML(os.Stdout, targets)
		}),
	}

	controlCmd := &cobra.Command{
		Use:   "control ID SCAN_UUID stop|pause|resume",
		Short: "Control a scan running on a scanner",
		Args:  ExactArgs(3),
		RunE: scannerRun(func(api *tio.ScannersAPI, id int, args []string) error {
			return api.ControlScan(config.Ctx, id, args[0], args[1])
		}),
	}

	linkCmd := &cobra.Command{
		Use:   "link ID true|false",
		Short: "Link or unlink a scanner",
		Args:  ExactArgs(2),
		RunE: scannerRun(func(api *tio.ScannersAPI, id int, args []string) error {
			linked, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("%q is not a boolean", args[0])
			}
			return api.ToggleLinkState(config.Ctx, id, linked)
		}),
	}

	allowedCmd := &cobra.Command{
		Use:   "allowed",
		Short: "List the scanners the current user may use",
		Args:  NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			allowed, err := client.Scanners().AllowedScanners(config.Ctx)
			if err != nil {
				return err
			}
			return printYAML(os.Stdout, allowed)
		},
	}

	linkingKeyCmd := &cobra.Command{
		Use:   "linking-key",
		Short: "Print the key used to link new scanners",
		Args:  NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			key, err := client.Scanners().LinkingKey(config.Ctx)
			if err != nil {
				return err
			}
			if key == "" {
				log.Warn("No scanner carries the linking key")
				return nil
			}
			fmt.Println(key)
			return nil
		},
	}

	outdatedCmd := &cobra.Command{
		Use:   "outdated VERSION",
		Short: "List the scanners with an engine older than VERSION",
		Args:  ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			outdated, err := client.Scanners().Outdated(config.Ctx, args[0])
			if err != nil {
				return err
			}

			log.Infof("%s scanner(s) older than %s", config.Yellow(len(outdated)), args[0])
			printScanners(os.Stdout, outdated)
			return nil
		},
	}

	editCmd.Flags().BoolVar(&forcePluginUpdate, "force-plugin-update", false, "force a plugin update")
	editCmd.Flags().BoolVar(&forceUIUpdate, "force-ui-update", false, "force a UI update")
	editCmd.Flags().BoolVar(&finishUpdate, "finish-update", false, "reboot the scanner to finish an update")
	editCmd.Flags().StringVar(&registrationCode, "registration-code", "", "new registration code")
	editCmd.Flags().IntVar(&awsInterval, "aws-update-interval", 0, "minutes between AWS target refreshes")

	rootCmd.PersistentFlags().String("url", "", "Tenable.io URL")
	_ = viper.BindPFlag("tio.url", rootCmd.PersistentFlags().Lookup("url"))

	scannersCmd.AddCommand(listCmd, detailsCmd, deleteCmd, editCmd, keyCmd, scansCmd,
		awsCmd, controlCmd, linkCmd, allowedCmd, linkingKeyCmd, outdatedCmd)

	rootCmd.AddCommand(scannersCmd)
}
