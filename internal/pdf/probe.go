package pdf

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Probe exercises the operations a corrupted document is known to hang:
// structural validation of the cross-reference table and a low-resolution
// trial render of the first page. It is run by the hidden probe subcommand
// inside the pre-screen child process, where hanging is harmless.
func Probe(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if pdfCtx.PageCount < 1 {
		return fmt.Errorf("document has no pages")
	}

	// 72 DPI keeps the trial render cheap; the pathology being probed for
	// hangs at any resolution.
	if _, err := NewPopplerRenderer().RenderFirstPage(ctx, path, 72); err != nil {
		return fmt.Errorf("trial render: %w", err)
	}

	return nil
}
