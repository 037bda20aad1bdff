package main

import (
	"github.com/spf13/cobra"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/service"
)

var (
	extractExisting   []string
	extractSourcetype string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract fields, the extraction regex and the timestamp profile of a sample",
	Long: "Runs format detection and field extraction on the sample. Fields named with " +
		"--existing are treated as already extracted by the platform and get no capture group.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sample, err := readSample(cmd)
		if err != nil {
			return err
		}

		existing := make([]fields.FieldRecord, 0, len(extractExisting))
		for _, name := range extractExisting {
			existing = append(existing, fields.New(name, "", 1, fields.SourceSplunkExisting, false))
		}

		ext, err := newExtractionService().Extract(cmd.Context(), service.ExtractRequest{
			Sample:     sample,
			Existing:   existing,
			Sourcetype: extractSourcetype,
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd, ext)
	},
}

func init() {
	extractCmd.Flags().StringSliceVar(&extractExisting, "existing", nil, "field names the platform already extracts")
	extractCmd.Flags().StringVar(&extractSourcetype, "sourcetype", "", "sourcetype overriding the detected hint")
	rootCmd.AddCommand(extractCmd)
}
