// Package extract implements the tiered card-field extraction pipeline: a
// remote vision extractor tried first, with heuristic text parsing and
// layout-region recognition as local fallbacks, merged under a fill-empty-only
// policy.
package extract

import (
	"context"
	"image"

	"github.com/sells-group/cardscan-cli/internal/model"
)

// FieldMap holds extracted values keyed by CSV column name. Values are always
// strings; an absent key and an empty value are equivalent.
type FieldMap map[string]string

// RemoteResult is a successful structured extraction: flattened fields, the
// per-field confidence scores, and the raw payload kept for review tooling.
type RemoteResult struct {
	Fields     FieldMap
	Confidence model.ConfidenceMap
	Raw        map[string]any
}

// RemoteExtractor produces a structured extraction from a card image.
type RemoteExtractor interface {
	Extract(ctx context.Context, img image.Image) (*RemoteResult, error)
}

// LayoutExtractor recognizes fields from learned or default card regions. It
// is best-effort: fields it cannot read are simply absent from the result.
type LayoutExtractor interface {
	Extract(ctx context.Context, img image.Image) FieldMap
}

// Grader estimates a slab grade from the image. Best-effort; returns "" when
// no grade label is readable.
type Grader interface {
	Estimate(ctx context.Context, img image.Image) string
}
