package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

// Options tunes the fallback chain. Thresholds and timeouts are deliberately
// configuration, not constants: the right values depend on hardware speed and
// typical document quality.
type Options struct {
	// ConfidenceThreshold is the 0-100 score below which cloud escalation is
	// offered for a page.
	ConfidenceThreshold float64

	// RenderDPI is the resolution for page rasterization.
	RenderDPI int

	// RetryDPI is used for the single automatic retry after an
	// image-size-limit failure. Zero disables the retry.
	RetryDPI int

	// FlushEvery is the page interval for incremental cache flushes during
	// long jobs. Zero disables incremental flushing.
	FlushEvery int

	// ForceCloud skips the local stage entirely.
	ForceCloud bool

	// ForceReprocess deletes any cached entry before processing.
	ForceReprocess bool

	// ResumeFromPage skips pages before this zero-based index in the local
	// page loop, so a retried long job can pick up roughly where it stopped.
	ResumeFromPage int
}

// DefaultOptions returns the standard chain tuning.
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		RenderDPI:           300,
		RetryDPI:            150,
		FlushEvery:          10,
	}
}

// Orchestrator sequences the extraction fallback chain for whole documents.
// It owns no goroutines; Run blocks the calling goroutine from the first
// pre-screen probe to the final entry.
type Orchestrator struct {
	scorer    *Scorer
	renderer  PageRenderer
	prescreen PreScreener
	cache     ResultCache
	cloud     []CloudBackend
	opts      Options
	log       zerolog.Logger
}

// New constructs an orchestrator from injected capabilities. local,
// prescreen and cache may be nil; cloud may be empty. The order of cloud is
// the direct-document provider preference order.
func New(local LocalEngine, renderer PageRenderer, prescreen PreScreener, cache ResultCache, cloud []CloudBackend, opts Options) *Orchestrator {
	log := logger.WithComponent("orchestrator")

	var scorer *Scorer
	if local != nil {
		scorer = NewScorer(local, logger.WithComponent("scorer"))
	}

	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if opts.RenderDPI <= 0 {
		opts.RenderDPI = 300
	}

	return &Orchestrator{
		scorer:    scorer,
		renderer:  renderer,
		prescreen: prescreen,
		cache:     cache,
		cloud:     cloud,
		opts:      opts,
		log:       log,
	}
}

// Run executes the fallback chain for one document and returns the extracted
// entries together with the method that produced them. It never panics
// across the boundary and never returns a partial success: the result is
// either a non-empty entry list with MethodLocal or MethodCloudDirect, or
// MethodFailed with the error the user needs to act on.
func (o *Orchestrator) Run(ctx context.Context, job Job, hooks Hooks) (res Result, err error) {
	const op = "Run"

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Msg("Recovered panic at orchestrator boundary")
			res = Result{Method: MethodFailed}
			err = WrapExtractError(op, fmt.Errorf("internal error: %v", r), "")
		}
	}()

	progress := o.progressFunc(hooks)
	res.Method = MethodFailed

	o.log.Info().
		Str("job", job.String()).
		Bool("force_cloud", o.opts.ForceCloud).
		Bool("force_reprocess", o.opts.ForceReprocess).
		Msg("Starting extraction")

	if o.opts.ForceCloud {
		progress("Force cloud mode - skipping local OCR")
		entries, cloudErr := o.runCloudDirect(ctx, job, progress)
		if cloudErr == nil {
			return Result{Entries: entries, Method: MethodCloudDirect}, nil
		}
		o.suggestRepair(job.Path, progress)
		return res, cloudErr
	}

	// Stage A: local conversion and OCR.
	progress("Attempting local document processing...")
	entries, localErr := o.runLocal(ctx, job, hooks, progress)
	if localErr == nil {
		progress(fmt.Sprintf("Local OCR successful - extracted %d segments", len(entries)))
		return Result{Entries: entries, Method: MethodLocal}, nil
	}
	if errors.Is(localErr, ErrCanceled) || ctx.Err() != nil {
		return res, localErr
	}

	o.log.Warn().Err(localErr).Msg("Local stage failed, moving to cloud fallback")
	progress(fmt.Sprintf("Local processing failed: %s", truncate(localErr.Error(), 100)))

	// Stage B: direct document upload, every configured provider in order.
	progress("Plan B: trying direct cloud document processing...")
	cloudEntries, cloudErr := o.runCloudDirect(ctx, job, progress)
	if cloudErr == nil {
		return Result{Entries: cloudEntries, Method: MethodCloudDirect}, nil
	}
	progress("Plan B also failed")

	// Stage C: nothing left to try automatically. The local-stage error is
	// the reported cause: the actionable problem is the file itself, and the
	// local stage describes it best.
	progress("Plan C: manual document repair required")
	o.suggestRepair(job.Path, progress)
	return res, localErr
}

// runLocal is Stage A: cache lookup, corruption pre-screen, rasterization
// with one reduced-DPI retry, and the sequential page loop.
func (o *Orchestrator) runLocal(ctx context.Context, job Job, hooks Hooks, progress ProgressFunc) ([]PageEntry, error) {
	const op = "runLocal"

	if o.scorer == nil {
		return nil, WrapExtractError(op, ErrNoLocalEngine, "")
	}

	if o.cache != nil {
		if o.opts.ForceReprocess {
			progress("Force reprocess enabled - ignoring cache")
			if err := o.cache.Delete(job); err != nil {
				o.log.Warn().Err(err).Msg("Could not delete stale cache entry")
			}
		} else if o.opts.ResumeFromPage == 0 {
			if cached, ok := o.cache.Load(job); ok {
				progress("Using cached OCR results")
				return cached, nil
			}
		}
	}

	if o.prescreen != nil {
		progress("Pre-screening document for corruption...")
		safe, diag := o.prescreen.Screen(ctx, job.Path)
		if !safe {
			progress(fmt.Sprintf("Pre-screen failed: %s", diag))
			progress("This document would hang local conversion and cannot be processed locally.")
			return nil, WrapExtractError(op, ErrCorrupted, diag)
		}
		progress("Pre-screen passed - safe for local conversion")
	}

	progress(fmt.Sprintf("Converting document pages to images at %d DPI...", o.opts.RenderDPI))
	pages, err := o.renderer.RenderPages(ctx, job.Path, o.opts.RenderDPI)
	if err != nil && errors.Is(err, ErrImageTooLarge) && o.opts.RetryDPI > 0 {
		// Large scanned pages routinely blow default image-dimension limits;
		// halving resolution is usually sufficient and costs the user nothing.
		progress(fmt.Sprintf("Page images too large at %d DPI, retrying at %d DPI...", o.opts.RenderDPI, o.opts.RetryDPI))
		pages, err = o.renderer.RenderPages(ctx, job.Path, o.opts.RetryDPI)
	}
	if err != nil {
		progress(fmt.Sprintf("Conversion failed: %s", truncate(err.Error(), 120)))
		if errors.Is(err, ErrImageTooLarge) {
			return nil, WrapExtractError(op, err, "conversion failed even at reduced DPI")
		}
		return nil, WrapExtractError(op, err, "page conversion failed")
	}

	total := len(pages)
	progress(fmt.Sprintf("Processing %d pages with OCR...", total))

	escalator := o.imageBackend()
	start := o.opts.ResumeFromPage
	if start < 0 || start >= total {
		start = 0
	}

	var entries []PageEntry
	for i := start; i < total; i++ {
		if err := o.checkCanceled(ctx, hooks); err != nil {
			return nil, WrapExtractError(op, err, fmt.Sprintf("canceled before page %d", i+1))
		}

		pageNo := i + 1
		progress(fmt.Sprintf("Processing page %d/%d...", pageNo, total))

		text, confidence, err := o.scorer.Score(ctx, pages[i], job.Language, job.Quality)
		if err != nil {
			// A single bad page never aborts the job.
			o.log.Warn().Err(err).Int("page", pageNo).Msg("Page OCR failed, skipping")
			progress(fmt.Sprintf("Error on page %d: %s", pageNo, truncate(err.Error(), 100)))
			continue
		}

		entries = append(entries, o.pageEntries(ctx, job, hooks, progress, escalator, pageNo, pages[i], text, confidence)...)

		if o.cache != nil && o.opts.FlushEvery > 0 && pageNo%o.opts.FlushEvery == 0 {
			if err := o.cache.Save(job, entries); err != nil {
				o.log.Warn().Err(err).Int("page", pageNo).Msg("Incremental cache flush failed")
			} else {
				progress(fmt.Sprintf("Progress saved at page %d", pageNo))
			}
		}
	}

	if len(entries) == 0 {
		return nil, WrapExtractError(op, ErrNoText, "OCR produced no entries on any page")
	}

	if o.cache != nil {
		if err := o.cache.Save(job, entries); err != nil {
			o.log.Warn().Err(err).Msg("Could not save OCR cache")
		}
	}

	progress(fmt.Sprintf("OCR complete - extracted %d text segments from %d pages", len(entries), total))
	return entries, nil
}

// pageEntries scores one page's text into entries, applying the escalation
// policy when the local confidence is below threshold.
func (o *Orchestrator) pageEntries(ctx context.Context, job Job, hooks Hooks, progress ProgressFunc, escalator CloudBackend, pageNo int, image []byte, text string, confidence float64) []PageEntry {
	location := fmt.Sprintf("Page %d", pageNo)

	if confidence < o.opts.ConfidenceThreshold && escalator != nil {
		progress(fmt.Sprintf("Low confidence on page %d (%.1f%%) - local OCR may be unreliable", pageNo, confidence))

		var ask func() bool
		if hooks.AskEscalate != nil {
			ask = func() bool {
				return hooks.AskEscalate(confidence, escalator.Name(), escalator.Model())
			}
		}

		decision := Decide(confidence, o.opts.ConfidenceThreshold, true, ask)
		o.log.Debug().
			Float64("confidence", decision.Confidence).
			Float64("threshold", decision.Threshold).
			Bool("user_consulted", decision.UserConsulted).
			Bool("escalate", decision.ShouldEscalate).
			Int("page", pageNo).
			Msg("Escalation decision")

		if decision.ShouldEscalate {
			progress(fmt.Sprintf("Retrying page %d via %s...", pageNo, escalator.Name()))
			cloudText, err := escalator.TranscribeImage(ctx, image, job.TextType)
			if err == nil && strings.TrimSpace(cloudText) != "" {
				progress(fmt.Sprintf("Cloud transcription of page %d complete", pageNo))
				return splitEntries(cloudText, pageNo, location, nil)
			}
			if err != nil {
				progress(fmt.Sprintf("Cloud retry failed, keeping local result: %s", truncate(err.Error(), 100)))
			}
		}
	}

	conf := confidence
	return splitEntries(text, pageNo, location, &conf)
}

// runCloudDirect is Stage B: upload the raw document to each
// document-capable provider in preference order. The point of this stage is
// maximizing the chance of some success, so every configured alternative is
// tried, not just the user's currently selected provider.
func (o *Orchestrator) runCloudDirect(ctx context.Context, job Job, progress ProgressFunc) ([]PageEntry, error) {
	const op = "runCloudDirect"

	var providers []CloudBackend
	for _, b := range o.cloud {
		if b.SupportsDocuments() {
			providers = append(providers, b)
		}
	}
	if len(providers) == 0 {
		progress("No document-capable cloud provider configured")
		return nil, WrapExtractError(op, ErrNoCloudBackend, "")
	}

	data, err := os.ReadFile(job.Path)
	if err != nil {
		return nil, WrapExtractError(op, err, "could not read document")
	}

	var lastErr error
	for _, backend := range providers {
		progress(fmt.Sprintf("Attempting direct document upload to %s...", backend.Name()))
		progress("This bypasses local page conversion entirely.")

		text, err := backend.TranscribeDocument(ctx, data)
		if err != nil {
			o.log.Warn().Err(err).Str("provider", backend.Name()).Msg("Direct document transcription failed")
			progress(fmt.Sprintf("%s failed: %s", backend.Name(), truncate(err.Error(), 100)))
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) == "" {
			progress(fmt.Sprintf("%s returned no text", backend.Name()))
			lastErr = ErrNoText
			continue
		}

		entries := splitEntries(text, 1, fmt.Sprintf("Cloud AI (%s)", backend.Name()), nil)
		progress(fmt.Sprintf("Success with %s - extracted %d text segments", backend.Name(), len(entries)))
		return entries, nil
	}

	progress("All cloud providers failed")
	if lastErr == nil {
		lastErr = ErrNoCloudBackend
	}
	return nil, WrapExtractError(op, lastErr, "all document-capable providers failed")
}

// suggestRepair is Stage C. Repairing happens entirely outside this system;
// all we can do is point the user at tooling known to fix the common
// cross-reference corruption in old scans.
func (o *Orchestrator) suggestRepair(path string, progress ProgressFunc) {
	progress(fmt.Sprintf("The file %q appears to be malformed and could not be processed automatically.", path))
	progress("Repair it with an external tool and try again:")
	progress("  https://www.ilovepdf.com/repair-pdf")
	progress("  https://smallpdf.com/repair-pdf")
	progress("  https://www.pdf2go.com/repair-pdf")
	progress("The repair usually takes less than a minute.")
}

// imageBackend returns the first configured provider usable for per-page
// escalation, or nil.
func (o *Orchestrator) imageBackend() CloudBackend {
	if len(o.cloud) == 0 {
		return nil
	}
	return o.cloud[0]
}

func (o *Orchestrator) progressFunc(hooks Hooks) ProgressFunc {
	return func(msg string) {
		o.log.Info().Msg(msg)
		if hooks.Progress != nil {
			hooks.Progress(msg)
		}
	}
}

func (o *Orchestrator) checkCanceled(ctx context.Context, hooks Hooks) error {
	if err := ctx.Err(); err != nil {
		return ErrCanceled
	}
	if hooks.Canceled != nil && hooks.Canceled() {
		return ErrCanceled
	}
	return nil
}

// splitEntries breaks page text into paragraph entries, dropping empties.
// The confidence pointer is copied per entry so callers can reuse locals.
func splitEntries(text string, start int, location string, confidence *float64) []PageEntry {
	var out []PageEntry
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		entry := PageEntry{Start: start, Text: para, Location: location}
		if confidence != nil {
			c := *confidence
			entry.Confidence = &c
		}
		out = append(out, entry)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
