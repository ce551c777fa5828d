package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// ConverterMissingError reports that the system PDF converter binary is not
// installed. PDF-shaped inputs cannot be processed until it is.
type ConverterMissingError struct {
	Binary string
}

func (e *ConverterMissingError) Error() string {
	return "ocr: converter binary " + e.Binary + " not found on PATH"
}

// PdfToPpm rasterizes PDFs with the poppler pdftoppm CLI tool.
type PdfToPpm struct {
	binPath string
}

// NewPdfToPpm creates a PdfToPpm rasterizer. If binPath is empty, "pdftoppm"
// is used.
func NewPdfToPpm(binPath string) *PdfToPpm {
	if binPath == "" {
		binPath = "pdftoppm"
	}
	return &PdfToPpm{binPath: binPath}
}

// Check verifies the converter binary is available.
func (p *PdfToPpm) Check() error {
	if _, err := exec.LookPath(p.binPath); err != nil {
		return &ConverterMissingError{Binary: p.binPath}
	}
	return nil
}

// Rasterize converts a PDF into one PNG per page under outDir and returns the
// page image paths in page order.
func (p *PdfToPpm) Rasterize(ctx context.Context, docPath, outDir string, dpi int) ([]string, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = 300
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "ocr: create raster dir %s", outDir)
	}

	prefix := filepath.Join(outDir, "page")
	cmd := exec.CommandContext(ctx, p.binPath, "-png", "-r", strconv.Itoa(dpi), docPath, prefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: pdftoppm failed for %s: %s", docPath, stderr.String())
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, eris.Wrap(err, "ocr: glob raster output")
	}
	if len(pages) == 0 {
		return nil, eris.Errorf("ocr: pdftoppm produced no pages for %s", docPath)
	}
	sort.Strings(pages)
	return pages, nil
}
