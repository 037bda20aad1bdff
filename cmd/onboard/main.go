package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"log-onboarding-engine/internal/config"
	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/parser"
	"log-onboarding-engine/internal/service"
)

var (
	cfg        *config.Config
	cfgFile    string
	sampleFile string
)

var rootCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Detect log formats and build field extractions",
	Long: "Detects the format of a log sample, extracts its fields, synthesizes an extraction " +
		"regex and a timestamp profile, and runs custom patterns against the sample.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		cfg = c

		// stdout carries the JSON results; logs go to stderr unless configured otherwise
		output := cfg.Log.Output
		if output == "" || output == "stdout" {
			output = "stderr"
		}
		logging.InitGlobalLogger(&logging.LoggerConfig{
			Level:     cfg.Log.Level,
			Component: "cli",
			Output:    output,
			Format:    cfg.Log.Format,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (env ONBOARD_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&sampleFile, "file", "f", "", "read the sample from this file instead of stdin")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readSample returns the sample from --file, or from stdin when no file is given
func readSample(cmd *cobra.Command) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if sampleFile != "" {
		f, err := os.Open(sampleFile)
		if err != nil {
			return "", errors.Wrap(err, "open sample")
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "read sample")
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// writeJSON prints v as indented JSON on the command's stdout
func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newExtractionService() *service.ExtractionService {
	return service.NewExtractionService(parser.NewParserManager(), service.OptionsFromConfig(cfg))
}
