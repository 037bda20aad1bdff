package main

import (
	"github.com/spf13/cobra"
)

var (
	applyPattern      string
	synthesizePattern string
	previewPattern    string
)

var applyRegexCmd = &cobra.Command{
	Use:   "apply-regex",
	Short: "Run a custom pattern against a sample",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sample, err := readSample(cmd)
		if err != nil {
			return err
		}

		result, err := newExtractionService().ApplyCustomRegex(cmd.Context(), sample, applyPattern)
		if err != nil {
			return err
		}
		return writeJSON(cmd, result)
	},
}

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Name the numbered groups of a pattern",
	Long:  "Gives every unnamed capture group of the pattern a field name and prints it in both named-group syntaxes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		named, err := newExtractionService().SynthesizeNamed(synthesizePattern)
		if err != nil {
			return err
		}
		return writeJSON(cmd, named)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "List every match of a pattern across a sample",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sample, err := readSample(cmd)
		if err != nil {
			return err
		}

		matches, err := newExtractionService().Preview(cmd.Context(), sample, previewPattern)
		if err != nil {
			return err
		}
		return writeJSON(cmd, matches)
	},
}

func init() {
	applyRegexCmd.Flags().StringVarP(&applyPattern, "pattern", "p", "", "pattern to apply")
	_ = applyRegexCmd.MarkFlagRequired("pattern")
	synthesizeCmd.Flags().StringVarP(&synthesizePattern, "pattern", "p", "", "pattern whose groups to name")
	_ = synthesizeCmd.MarkFlagRequired("pattern")
	previewCmd.Flags().StringVarP(&previewPattern, "pattern", "p", "", "combined pattern to preview")
	_ = previewCmd.MarkFlagRequired("pattern")

	rootCmd.AddCommand(applyRegexCmd, synthesizeCmd, previewCmd)
}
