package extract

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// NeutralConfidence is reported when the backend produced text but no usable
// confidence data: not high enough to skip escalation checks outright, not
// low enough to always trigger them.
const NeutralConfidence = 50.0

// Scorer wraps a local OCR backend call and produces cleaned text plus a
// confidence score in the 0-100 range.
type Scorer struct {
	engine LocalEngine
	log    zerolog.Logger
}

// NewScorer returns a Scorer over the given backend.
func NewScorer(engine LocalEngine, log zerolog.Logger) *Scorer {
	return &Scorer{engine: engine, log: log}
}

// Score recognizes one page image and returns its cleaned text and the
// arithmetic mean of the word-level confidences. Words the backend marks as
// non-text (negative sentinel confidence) and words that are empty after
// trimming are excluded from the average entirely, not counted as zero.
//
// When word-level recognition fails or yields nothing, Score falls back to
// plain text extraction with NeutralConfidence. An error is returned only
// when the backend produced no text at all.
func (s *Scorer) Score(ctx context.Context, image []byte, language string, quality Quality) (string, float64, error) {
	const op = "Score"

	words, err := s.engine.Recognize(ctx, image, language, quality)
	if err != nil || len(words) == 0 {
		if err != nil {
			s.log.Warn().Err(err).Msg("Word-level recognition unavailable, falling back to plain text")
		}
		text, perr := s.engine.PlainText(ctx, image, language, quality)
		if perr != nil {
			return "", 0, WrapExtractError(op, perr, "plain text fallback failed")
		}
		return CleanRecognizedText(text), NeutralConfidence, nil
	}

	var sum float64
	var counted int
	var text strings.Builder

	for _, w := range words {
		trimmed := strings.TrimSpace(w.Text)
		if trimmed == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(trimmed)

		if w.Confidence < 0 {
			// Backend sentinel for non-text elements.
			continue
		}
		sum += w.Confidence
		counted++
	}

	// Prefer the backend's full-page layout when it is available; the word
	// stream loses line structure.
	full, perr := s.engine.PlainText(ctx, image, language, quality)
	page := text.String()
	if perr == nil && strings.TrimSpace(full) != "" {
		page = full
	}

	confidence := NeutralConfidence
	if counted > 0 {
		confidence = sum / float64(counted)
	}

	return CleanRecognizedText(page), confidence, nil
}
