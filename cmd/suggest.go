package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/config"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [pdf-file]",
	Short: "Suggest a text type for a document",
	Long: `Run a quick low-resolution OCR pass over the first page and suggest
whether the document should be processed as printed text or handwriting.
Printed pages score well locally; handwriting scores poorly and is better
served by a cloud provider.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		orch, closers, err := buildOrchestrator(cmd.Context(), cfg, extract.Options{
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			RenderDPI:           cfg.RenderDPI,
			RetryDPI:            cfg.RetryDPI,
		}, true)
		if err != nil {
			return err
		}
		defer func() {
			for _, c := range closers {
				c()
			}
		}()

		suggested, confidence, err := orch.SuggestTextType(cmd.Context(), extract.Job{
			Path:     args[0],
			TextType: extract.TextPrinted,
			Quality:  extract.QualityFast,
			Language: cfg.Language,
		})
		if err != nil {
			return err
		}

		fmt.Printf("First-page OCR confidence: %.1f%%\n", confidence)
		fmt.Printf("Suggested text type:       %s\n", suggested)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}
