package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/cache"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/config"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/pdf"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/tesseract"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/vision"
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf-file]",
	Short: "Extract text from a scanned document",
	Long: `Extract text from a scanned or photographed PDF document.

The document is processed through a fallback chain:
  1. Local OCR: pages are rasterized and recognized with tesseract.
     Low-confidence pages can escalate individually to a cloud provider.
  2. Direct cloud upload: when local conversion fails, the raw PDF is
     sent to each document-capable cloud provider in preference order.
  3. Repair guidance: when everything fails, the document needs manual
     repair with an external tool.

Cloud providers are optional. Configure them through the environment:
  GOOGLE_APPLICATION_CREDENTIALS / GOOGLE_CREDENTIALS - Google providers
  GOOGLE_PROJECT_ID - required for Gemini and Document AI
  OPENAI_API_KEY - OpenAI provider
  CLOUD_PROVIDER_ORDER - preference order (default: gemini first)`,
	Example: `  # Extract printed text with default settings
  docanalyser extract scan.pdf

  # Handwritten document at the accurate quality preset
  docanalyser extract letter.pdf --text-type handwriting --quality accurate

  # German document, skip cache, write JSON
  docanalyser extract brief.pdf --language deu --force-reprocess --json -o out.json

  # Skip local OCR entirely
  docanalyser extract broken.pdf --force-cloud`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// ExtractOutput is the JSON output structure when --json is used.
type ExtractOutput struct {
	File    string              `json:"file"`
	Method  string              `json:"method"`
	Entries []extract.PageEntry `json:"entries"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("text-type", "t", "printed", "Text type: printed or handwriting")
	extractCmd.Flags().StringP("quality", "q", "balanced", "Quality preset: fast, balanced or accurate")
	extractCmd.Flags().StringP("language", "l", "", "OCR language (default from OCR_LANGUAGE, then eng)")
	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().Bool("force-cloud", false, "Skip local OCR, go straight to cloud")
	extractCmd.Flags().Bool("force-reprocess", false, "Ignore and delete cached results")
	extractCmd.Flags().Int("resume-from", 0, "Resume local OCR at this 1-based page number")
	extractCmd.Flags().Bool("yes", false, "Escalate low-confidence pages without asking")
	extractCmd.Flags().Bool("no-cloud", false, "Disable cloud providers entirely")
	extractCmd.Flags().Bool("quiet", false, "Suppress progress output")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	textType, _ := cmd.Flags().GetString("text-type")
	quality, _ := cmd.Flags().GetString("quality")
	language, _ := cmd.Flags().GetString("language")
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	forceCloud, _ := cmd.Flags().GetBool("force-cloud")
	forceReprocess, _ := cmd.Flags().GetBool("force-reprocess")
	resumeFrom, _ := cmd.Flags().GetInt("resume-from")
	autoYes, _ := cmd.Flags().GetBool("yes")
	noCloud, _ := cmd.Flags().GetBool("no-cloud")
	quiet, _ := cmd.Flags().GetBool("quiet")

	docPath := args[0]
	if _, err := os.Stat(docPath); err != nil {
		return fmt.Errorf("cannot access document: %w", err)
	}

	job := extract.Job{
		Path:     docPath,
		TextType: extract.TextType(textType),
		Quality:  extract.Quality(quality),
		Language: language,
	}
	if job.TextType != extract.TextPrinted && job.TextType != extract.TextHandwriting {
		return fmt.Errorf("invalid text type %q: use printed or handwriting", textType)
	}
	if !job.Quality.Valid() {
		return fmt.Errorf("invalid quality %q: use fast, balanced or accurate", quality)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if job.Language == "" {
		job.Language = cfg.Language
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A scanned-PDF check is advisory only; extraction proceeds either way.
	if report, err := pdf.Analyze(docPath); err == nil && !report.Scanned && !quiet {
		fmt.Fprintf(os.Stderr, "Note: this document already has a text layer (%s).\n", report.Reason)
	}

	orch, closers, err := buildOrchestrator(ctx, cfg, extract.Options{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		RenderDPI:           cfg.RenderDPI,
		RetryDPI:            cfg.RetryDPI,
		FlushEvery:          cfg.FlushEvery,
		ForceCloud:          forceCloud,
		ForceReprocess:      forceReprocess,
		ResumeFromPage:      resumeIndex(resumeFrom),
	}, noCloud)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	hooks := extract.Hooks{
		Progress: func(msg string) {
			if !quiet {
				fmt.Fprintln(os.Stderr, msg)
			}
		},
		AskEscalate: func(confidence float64, provider, model string) bool {
			if autoYes {
				return true
			}
			return promptYesNo(fmt.Sprintf(
				"Local OCR confidence is %.1f%%. Retry this page with %s (%s)? [y/N] ",
				confidence, provider, model))
		},
	}

	result, err := orch.Run(ctx, job, hooks)
	if err != nil {
		log.Error().Err(err).Str("file", filepath.Base(docPath)).Msg("Extraction failed")
		return err
	}

	log.Info().
		Str("method", string(result.Method)).
		Int("entries", len(result.Entries)).
		Msg("Extraction complete")

	return writeResult(docPath, result, outputPath, jsonOutput)
}

// resumeIndex converts the 1-based --resume-from page number to the
// zero-based index the page loop starts at.
func resumeIndex(page int) int {
	if page <= 1 {
		return 0
	}
	return page - 1
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, opts extract.Options, noCloud bool) (*extract.Orchestrator, []func(), error) {
	store, err := cache.NewStore(cfg.CacheDir)
	if err != nil {
		return nil, nil, err
	}

	var backends []extract.CloudBackend
	if !noCloud {
		backends = vision.BuildChain(ctx, vision.ChainConfig{
			Order:        cfg.Providers(),
			ProjectID:    cfg.GoogleCloudProject,
			Location:     cfg.GoogleCloudLocation,
			GeminiRegion: cfg.GeminiRegion,
			GeminiModel:  cfg.GeminiModel,
			ProcessorID:  cfg.DocumentAIProcessorID,
			OpenAIKey:    cfg.OpenAIAPIKey,
			OpenAIModel:  cfg.OpenAIModel,
		})
	}

	var closers []func()
	for _, b := range backends {
		if closer, ok := b.(interface{ Close() error }); ok {
			closers = append(closers, func() { closer.Close() })
		}
	}

	var local extract.LocalEngine
	if engine := tesseract.NewEngine(); engine.Available() {
		local = engine
	} else {
		logger.Warn("Local OCR engine unavailable, relying on cloud providers")
	}

	orch := extract.New(
		local,
		pdf.NewPopplerRenderer(),
		pdf.NewSubprocessScreener(cfg.PrescreenTimeout),
		store,
		backends,
		opts,
	)
	return orch, closers, nil
}

func writeResult(docPath string, result extract.Result, outputPath string, jsonOutput bool) error {
	var out []byte
	if jsonOutput {
		data, err := json.MarshalIndent(ExtractOutput{
			File:    filepath.Base(docPath),
			Method:  string(result.Method),
			Entries: result.Entries,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("could not encode output: %w", err)
		}
		out = data
	} else {
		var sb strings.Builder
		lastLocation := ""
		for _, e := range result.Entries {
			if e.Location != lastLocation {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("--- %s ---\n", e.Location))
				lastLocation = e.Location
			}
			sb.WriteString(e.Text)
			sb.WriteString("\n\n")
		}
		out = []byte(sb.String())
	}

	if outputPath == "" {
		fmt.Print(string(out))
		return nil
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("could not write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Output written to %s\n", outputPath)
	return nil
}

func promptYesNo(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
