package main

import (
	"github.com/spf13/cobra"

	"log-onboarding-engine/internal/parser"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the detected format of a sample",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sample, err := readSample(cmd)
		if err != nil {
			return err
		}

		format, err := newExtractionService().Detect(cmd.Context(), sample)
		if err != nil {
			return err
		}
		return writeJSON(cmd, struct {
			Format     parser.Format `json:"format"`
			Sourcetype string        `json:"sourcetype"`
		}{format, format.Sourcetype()})
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
