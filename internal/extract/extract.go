// Package extract implements the OCR fallback-chain policy for scanned
// documents.
//
// A document is processed in three strictly ordered stages:
//
//	Stage A (local):  corruption pre-screen, page rasterization, per-page
//	                  Tesseract OCR with confidence scoring and optional,
//	                  user-approved cloud escalation for low-confidence pages.
//	Stage B (cloud):  the raw document is uploaded to each configured
//	                  document-capable cloud provider in preference order,
//	                  bypassing local rasterization entirely.
//	Stage C (manual): no further automated attempt; the caller is pointed at
//	                  external PDF repair tooling.
//
// All backends are injected at construction time. An absent backend is a nil
// field, checked once, never a package-level availability flag. The
// orchestrator runs synchronously on the calling goroutine; callers that need
// a responsive UI run the whole call on a worker goroutine and receive
// progress through the Hooks callbacks.
package extract

import "context"

// Word is a single recognized token from the local OCR backend. A negative
// Confidence is the backend's sentinel for non-text elements and is excluded
// from confidence averaging rather than counted as zero.
type Word struct {
	Text       string
	Confidence float64
}

// LocalEngine is the narrow contract of the local OCR backend (Tesseract).
type LocalEngine interface {
	// Recognize returns per-word text and confidence for one page image.
	Recognize(ctx context.Context, image []byte, language string, quality Quality) ([]Word, error)

	// PlainText returns the page text without confidence data. Used as the
	// fallback when word-level recognition yields nothing.
	PlainText(ctx context.Context, image []byte, language string, quality Quality) (string, error)
}

// PageRenderer converts a document into one encoded image per page, in
// document order.
type PageRenderer interface {
	RenderPages(ctx context.Context, path string, dpi int) ([][]byte, error)
}

// PreScreener probes a document for the kind of corruption that hangs the
// rasterization library. Screen never returns an error: a probe that cannot
// run is reported as safe, with the reason in the diagnostic.
type PreScreener interface {
	Screen(ctx context.Context, path string) (safe bool, diagnostic string)
}

// CloudBackend is a cloud vision/LLM provider used for escalation and for the
// direct-document fallback stage.
type CloudBackend interface {
	// Name identifies the provider in logs and entry locations.
	Name() string

	// Model is the model identifier shown to the user when asking for
	// escalation consent.
	Model() string

	// SupportsDocuments reports whether TranscribeDocument accepts a raw
	// document upload. Backends that only handle single images return false
	// and are skipped by the direct-document stage.
	SupportsDocuments() bool

	// TranscribeImage transcribes one page image.
	TranscribeImage(ctx context.Context, image []byte, textType TextType) (string, error)

	// TranscribeDocument transcribes a whole raw document (e.g. a PDF).
	TranscribeDocument(ctx context.Context, document []byte) (string, error)
}

// ResultCache memoizes extraction results keyed by file content and job
// parameters. Implementations are best-effort: a failed save must not fail
// the job.
type ResultCache interface {
	Load(job Job) ([]PageEntry, bool)
	Save(job Job, entries []PageEntry) error
	Delete(job Job) error
}

// ProgressFunc receives human-readable status lines as the chain advances.
// Calls are synchronous and fire-and-forget; implementations must not block.
type ProgressFunc func(msg string)

// EscalateFunc asks the human whether a low-confidence page may be re-run
// through the named cloud provider. Escalation never happens without a true
// answer from this callback.
type EscalateFunc func(confidence float64, provider, model string) bool

// CancelFunc is polled once per page; returning true stops the job at the
// next page boundary.
type CancelFunc func() bool

// Hooks bundles the caller-supplied callbacks. Any field may be nil.
type Hooks struct {
	Progress    ProgressFunc
	AskEscalate EscalateFunc
	Canceled    CancelFunc
}
