package extract

import "context"

// BackendKind names the extraction backend class chosen for a text type.
type BackendKind string

const (
	BackendLocal BackendKind = "local"
	BackendCloud BackendKind = "cloud"
)

// SelectBackend maps a declared text type to an extraction backend. Pure
// mapping, no state: local OCR engines are tuned for printed glyphs, while
// cloud vision models handle handwriting far better at the cost of money and
// privacy. The mapping reflects an explicit user choice; auto-detection only
// ever suggests, it never overrides.
func SelectBackend(t TextType) BackendKind {
	if t == TextHandwriting {
		return BackendCloud
	}
	return BackendLocal
}

// SuggestTextType runs the local backend over a single sample page and
// recommends TextHandwriting when the confidence falls below the escalation
// threshold, which on a clean scan usually means the glyphs are not printed.
//
// The return value is a recommendation for the UI to present. Mode switches
// carry cost and privacy implications and therefore always require a human
// decision.
func (o *Orchestrator) SuggestTextType(ctx context.Context, job Job) (TextType, float64, error) {
	const op = "SuggestTextType"

	if o.scorer == nil {
		return job.TextType, 0, WrapExtractError(op, ErrNoLocalEngine, "cannot sample without a local backend")
	}

	pages, err := o.renderer.RenderPages(ctx, job.Path, o.sampleDPI())
	if err != nil {
		return job.TextType, 0, WrapExtractError(op, err, "sample page render failed")
	}
	if len(pages) == 0 {
		return job.TextType, 0, WrapExtractError(op, ErrNoText, "document has no pages")
	}

	_, confidence, err := o.scorer.Score(ctx, pages[0], job.Language, job.Quality)
	if err != nil {
		return job.TextType, 0, WrapExtractError(op, err, "sample page scoring failed")
	}

	suggested := TextPrinted
	if confidence < o.opts.ConfidenceThreshold {
		suggested = TextHandwriting
	}

	o.log.Debug().
		Float64("confidence", confidence).
		Float64("threshold", o.opts.ConfidenceThreshold).
		Str("suggested", string(suggested)).
		Msg("Sampled first page for text type suggestion")

	return suggested, confidence, nil
}

// sampleDPI picks a cheap resolution for the single-page sample render. The
// reduced retry DPI is enough for a confidence read; when retries are
// disabled the full render DPI is used instead.
func (o *Orchestrator) sampleDPI() int {
	if o.opts.RetryDPI > 0 {
		return o.opts.RetryDPI
	}
	return o.opts.RenderDPI
}
