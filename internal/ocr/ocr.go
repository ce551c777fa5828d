// Package ocr wraps the local recognition engine and the document rasterizer
// behind narrow interfaces. The rest of the pipeline treats both as black-box
// services.
package ocr

import (
	"context"
	"image"
)

// Options control a single recognition call.
type Options struct {
	// PSM is the tesseract page segmentation mode; 0 uses the engine default.
	PSM int
	// Whitelist restricts recognition to the given characters when non-empty.
	Whitelist string
}

// Token is one recognized word with its confidence and pixel bounding box.
type Token struct {
	Text       string
	Confidence float64
	X, Y, W, H int
}

// Engine recognizes text in images.
type Engine interface {
	// Recognize returns the full recognized text for an image.
	Recognize(ctx context.Context, img image.Image, opts Options) (string, error)
	// RecognizeStructured returns per-token text, confidence and bounds.
	RecognizeStructured(ctx context.Context, img image.Image, opts Options) ([]Token, error)
}

// Rasterizer converts a document into one image per page.
type Rasterizer interface {
	Rasterize(ctx context.Context, docPath, outDir string, dpi int) ([]string, error)
}
