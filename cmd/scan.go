package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/pdf"
)

var scanCmd = &cobra.Command{
	Use:   "scan-check [pdf-file]",
	Short: "Check whether a PDF needs OCR",
	Long: `Inspect the embedded text layer of a PDF and report whether the document
is a scan that needs OCR, or already carries usable text. Damaged text
layers from previous bad OCR passes are detected as scans.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := pdf.Analyze(args[0])
		if err != nil {
			return fmt.Errorf("could not analyze document: %w", err)
		}

		fmt.Printf("Pages:              %d\n", report.PageCount)
		fmt.Printf("Chars per page:     %.0f\n", report.CharsPerPage)
		fmt.Printf("Pages with images:  %d\n", report.ImagePages)
		if report.Scanned {
			fmt.Printf("Verdict:            needs OCR (%s)\n", report.Reason)
		} else {
			fmt.Printf("Verdict:            has usable text (%s)\n", report.Reason)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
