// Package pdf handles everything that touches PDF files directly: page
// rasterization through poppler, structural probing through pdfcpu, the
// subprocess corruption pre-screen, and scanned-document detection.
package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/extract"
	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

// PopplerRenderer rasterizes PDF pages to PNG by shelling out to poppler's
// pdftoppm. It implements extract.PageRenderer.
type PopplerRenderer struct {
	// Binary is the pdftoppm executable, resolved through PATH when not
	// absolute.
	Binary string

	log zerolog.Logger
}

// NewPopplerRenderer returns a renderer using pdftoppm from PATH.
func NewPopplerRenderer() *PopplerRenderer {
	return &PopplerRenderer{
		Binary: "pdftoppm",
		log:    logger.WithComponent("renderer"),
	}
}

// RenderPages rasterizes every page of the document at the given DPI and
// returns the PNG bytes in page order.
func (r *PopplerRenderer) RenderPages(ctx context.Context, path string, dpi int) ([][]byte, error) {
	return r.render(ctx, path, dpi, nil)
}

// RenderFirstPage rasterizes only page 1, used for trial renders and text
// type suggestion where the whole document would be wasted work.
func (r *PopplerRenderer) RenderFirstPage(ctx context.Context, path string, dpi int) ([]byte, error) {
	pages, err := r.render(ctx, path, dpi, []string{"-f", "1", "-l", "1"})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, extract.WrapExtractError("RenderFirstPage", extract.ErrConversionFailed, "no page produced")
	}
	return pages[0], nil
}

func (r *PopplerRenderer) render(ctx context.Context, path string, dpi int, extra []string) ([][]byte, error) {
	const op = "render"

	if _, err := os.Stat(path); err != nil {
		return nil, extract.WrapExtractError(op, err, "document not accessible")
	}

	outDir, err := os.MkdirTemp("", "docanalyser-pages-*")
	if err != nil {
		return nil, extract.WrapExtractError(op, err, "could not create page directory")
	}
	defer os.RemoveAll(outDir)

	prefix := filepath.Join(outDir, "page")
	args := []string{"-png", "-r", strconv.Itoa(dpi)}
	args = append(args, extra...)
	args = append(args, path, prefix)

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		stderr := strings.TrimSpace(string(out))
		r.log.Warn().Err(err).Int("dpi", dpi).Str("stderr", stderr).Msg("pdftoppm failed")
		return nil, extract.WrapExtractError(op, classifyRenderError(err, stderr),
			fmt.Sprintf("pdftoppm at %d DPI: %s", dpi, stderr))
	}

	pages, err := collectPages(outDir)
	if err != nil {
		return nil, extract.WrapExtractError(op, err, "could not read rendered pages")
	}
	if len(pages) == 0 {
		return nil, extract.WrapExtractError(op, extract.ErrConversionFailed, "pdftoppm produced no pages")
	}

	r.log.Debug().Int("pages", len(pages)).Int("dpi", dpi).Msg("Rendered document")
	return pages, nil
}

// classifyRenderError maps the renderer's stderr to a sentinel. Only
// image-size failures are retryable at lower resolution; everything else is
// a plain conversion failure.
func classifyRenderError(err error, stderr string) error {
	msg := strings.ToLower(stderr)
	for _, marker := range []string{
		"exceeds limit",
		"image size",
		"too large",
		"decompression bomb",
		"cannot allocate",
		"out of memory",
	} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %s", extract.ErrImageTooLarge, stderr)
		}
	}
	return fmt.Errorf("%w: %v", extract.ErrConversionFailed, err)
}

// collectPages reads the rendered PNGs in page-number order. pdftoppm pads
// page numbers to a width that depends on the page count, so the suffix is
// parsed numerically instead of sorting names.
func collectPages(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type page struct {
		nr   int
		name string
	}
	var found []page
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		base := strings.TrimSuffix(name, ".png")
		idx := strings.LastIndex(base, "-")
		if idx < 0 {
			continue
		}
		nr, err := strconv.Atoi(base[idx+1:])
		if err != nil {
			continue
		}
		found = append(found, page{nr: nr, name: name})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].nr < found[j].nr })

	pages := make([][]byte, 0, len(found))
	for _, p := range found {
		data, err := os.ReadFile(filepath.Join(dir, p.name))
		if err != nil {
			return nil, err
		}
		pages = append(pages, data)
	}
	return pages, nil
}
