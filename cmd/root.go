package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docanalyser",
	Short: "DocAnalyser CLI - OCR and cloud transcription for scanned documents",
	Long: `DocAnalyser extracts text from scanned and photographed documents.

Processing runs a fallback chain: local OCR first, then direct cloud
document transcription when local conversion fails, and finally repair
guidance when every automatic route is exhausted. Results are cached on
disk so a document is only processed once per quality and language.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("DocAnalyser CLI executed")

		fmt.Println("Welcome to DocAnalyser!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
