// Package tesseract wraps the local OCR engine behind
// extract.LocalEngine. Each recognition uses a fresh gosseract client;
// clients are cheap to create and sharing one across pages leaks state
// between SetVariable calls.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

// Engine performs local OCR through tesseract. It implements
// extract.LocalEngine.
type Engine struct {
	clientFactory func() *gosseract.Client
	log           zerolog.Logger
}

// NewEngine returns a tesseract-backed engine.
func NewEngine() *Engine {
	return &Engine{
		clientFactory: gosseract.NewClient,
		log:           logger.WithComponent("tesseract"),
	}
}

// Available reports whether the tesseract runtime can be initialized.
func (e *Engine) Available() bool {
	defer func() { recover() }()
	c := e.clientFactory()
	if c == nil {
		return false
	}
	c.Close()
	return true
}

// Recognize OCRs one page image and returns per-word confidences on the
// engine's native 0-100 scale. Non-text regions come back with negative
// confidence and are passed through for the scorer to exclude.
func (e *Engine) Recognize(ctx context.Context, image []byte, language string, quality extract.Quality) ([]extract.Word, error) {
	const op = "Recognize"

	c, err := e.prepare(ctx, image, language, quality)
	if err != nil {
		return nil, extract.WrapExtractError(op, err, "")
	}
	defer c.Close()

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, extract.WrapExtractError(op, err, "word recognition failed")
	}

	words := make([]extract.Word, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, extract.Word{Text: b.Word, Confidence: b.Confidence})
	}

	e.log.Debug().Int("words", len(words)).Str("quality", string(quality)).Msg("Page recognized")
	return words, nil
}

// PlainText OCRs one page image and returns the full recognized text with
// tesseract's own layout reconstruction, which keeps paragraph breaks that
// word-level output loses.
func (e *Engine) PlainText(ctx context.Context, image []byte, language string, quality extract.Quality) (string, error) {
	const op = "PlainText"

	c, err := e.prepare(ctx, image, language, quality)
	if err != nil {
		return "", extract.WrapExtractError(op, err, "")
	}
	defer c.Close()

	text, err := c.Text()
	if err != nil {
		return "", extract.WrapExtractError(op, err, "text recognition failed")
	}
	return text, nil
}

func (e *Engine) prepare(ctx context.Context, image []byte, language string, quality extract.Quality) (*gosseract.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	processed, err := Preprocess(image, quality)
	if err != nil {
		// Preprocessing is an accuracy aid, not a requirement.
		e.log.Warn().Err(err).Msg("Image preprocessing failed, using raw image")
		processed = image
	}

	c := e.clientFactory()
	if err := c.SetImageFromBytes(processed); err != nil {
		c.Close()
		return nil, fmt.Errorf("set image: %w", err)
	}
	if language != "" {
		if err := c.SetLanguage(language); err != nil {
			c.Close()
			return nil, fmt.Errorf("set language %q: %w", language, err)
		}
	}
	if err := c.SetPageSegMode(segMode(quality)); err != nil {
		c.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return c, nil
}

// segMode maps quality presets to page segmentation. The accurate preset
// pays for orientation and script detection; the faster presets assume an
// upright single-column page.
func segMode(quality extract.Quality) gosseract.PageSegMode {
	if quality == extract.QualityAccurate {
		return gosseract.PSM_AUTO_OSD
	}
	return gosseract.PSM_AUTO
}
