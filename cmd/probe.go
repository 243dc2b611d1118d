package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/pdf"
)

// probeCmd is the child half of the corruption pre-screen. The screener
// re-executes this binary with "probe <file>" and watches the wall clock;
// if the document hangs the PDF machinery, it hangs here, in a process the
// parent can kill. Hidden because users never run it directly.
var probeCmd = &cobra.Command{
	Use:    "probe [pdf-file]",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pdf.Probe(cmd.Context(), args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
