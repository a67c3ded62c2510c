package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"gqrxscan/internal/app"
)

// runner starts a scan with the final configuration
type runner func(config app.Config, rangeMode bool) error

func main() {
	if err := newRootCommand(startScan).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func startScan(config app.Config, rangeMode bool) error {
	application := app.NewApplication(config)
	if rangeMode {
		return application.StartRange()
	}
	return application.Start()
}

func newRootCommand(run runner) *cobra.Command {
	config := app.DefaultConfig()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "gqrxscan",
		Short: "Frequency scanner for gqrx remote control",
		Long: `Frequency scanner driving gqrx over its remote control port.

Tunes each channel of a CSV file in turn, reads the signal level and stops on
channels at or above the threshold. Press Enter to re-check an active channel;
scanning resumes on its own once the channel goes quiet.

CSV rows are: frequency (MHz), mode[, label...]

Example usage:
  gqrxscan --csv freq.csv --hostname 127.0.0.1 --port 7356 --threshold -25`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion(cmd.OutOrStdout())
				return nil
			}
			if err := applyConfigFile(cmd, configFile, &config); err != nil {
				return err
			}
			return run(config, false)
		},
	}

	rangeCmd := &cobra.Command{
		Use:   "range",
		Short: "Sweep a frequency range",
		Long: `Sweep from --min to --max (MHz) in --step Hz increments, wrapping back to
--min, with the same activity detection as the channel scan.

Example usage:
  gqrxscan range --min 144 --max 146 --mode NFM --step 12500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigFile(cmd, configFile, &config); err != nil {
				return err
			}
			return run(config, true)
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&config.Hostname, "hostname", "i", app.DefaultHostname, "IP or hostname for gqrx")
	persistent.IntVarP(&config.Port, "port", "p", app.DefaultPort, "Port for gqrx")
	persistent.Float64VarP(&config.Threshold, "threshold", "t", app.DefaultThreshold, "Signal level treated as activity; also used as squelch")
	persistent.IntVarP(&config.WaitSeconds, "wait", "w", app.DefaultWaitSeconds, "Seconds to wait on an active channel before re-checking")
	persistent.Float64Var(&config.PollInterval, "interval", 0, "Seconds between tuning and reading the level (0 for 1s, 0.5s in range mode)")
	persistent.Float64Var(&config.Timeout, "timeout", app.DefaultTimeout, "Network timeout per command in seconds (0 to disable)")
	persistent.StringVar(&configFile, "config", "", "YAML configuration file; flags given explicitly take precedence")
	persistent.BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.Flags().StringVarP(&config.CSVPath, "csv", "c", app.DefaultCSVPath, "CSV file to parse")
	rootCmd.Flags().StringVarP(&config.Delimiter, "delimiter", "d", app.DefaultDelimiter, `CSV delimiter ("\t" for tab)`)
	rootCmd.Flags().BoolVar(&config.ShowVersion, "version", false, "Show version information")

	rangeCmd.Flags().StringVar(&config.Range.Min, "min", "", "Lower frequency (MHz)")
	rangeCmd.Flags().StringVar(&config.Range.Max, "max", "", "Upper frequency (MHz)")
	rangeCmd.Flags().StringVarP(&config.Range.Mode, "mode", "m", app.DefaultRangeMode, "Demodulator mode")
	rangeCmd.Flags().Int64VarP(&config.Range.Step, "step", "s", app.DefaultRangeStep, "Step size (Hz)")
	rangeCmd.Flags().StringVar(&config.Range.Save, "save", "", "File for active frequencies (not implemented)")

	rootCmd.AddCommand(rangeCmd)

	return rootCmd
}

// applyConfigFile loads the YAML file into config, then re-applies flags that
// were set on the command line so they win over the file.
func applyConfigFile(cmd *cobra.Command, path string, config *app.Config) error {
	if path == "" {
		return nil
	}

	explicit := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := app.LoadConfigFile(path, config); err != nil {
		return err
	}

	for name, value := range explicit {
		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("failed to re-apply --%s: %w", name, err)
		}
	}

	return nil
}
