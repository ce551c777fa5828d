package extract

import (
	"context"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/cardscan-cli/internal/imaging"
	"github.com/sells-group/cardscan-cli/internal/ocr"
)

// SlabGrader estimates a card grade from the label band of a graded slab.
// This is a best-effort keyword match, not a certified grade: absence of a
// readable label leaves the grade empty and is never an error.
type SlabGrader struct {
	engine ocr.Engine
}

// NewSlabGrader builds a grader over the given recognition engine.
func NewSlabGrader(engine ocr.Engine) *SlabGrader {
	return &SlabGrader{engine: engine}
}

// Estimate reads the top band of the image where a slab label sits and maps
// known grade keywords to a 0-10 scale. Returns "" when nothing matches.
func (g *SlabGrader) Estimate(ctx context.Context, img image.Image) string {
	band := imaging.CropBand(img, 0, 0.3)
	enhanced := imaging.Enhance(band)

	text, err := g.engine.Recognize(ctx, enhanced, ocr.Options{PSM: 6})
	if err != nil {
		zap.L().Debug("grade band recognition failed", zap.Error(err))
		return ""
	}

	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "GEM"):
		return "10"
	case strings.Contains(upper, "MINT"):
		return "9"
	default:
		return ""
	}
}
