package extract

import (
	"context"
	"image"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/cardscan-cli/internal/imaging"
	"github.com/sells-group/cardscan-cli/internal/model"
	"github.com/sells-group/cardscan-cli/internal/ocr"
)

// Layout identifiers.
const (
	LayoutPokemon = "pokemon"
	LayoutTrainer = "trainer"
)

var trainerKeywords = []string{"TRAINER", "SUPPORTER", "ITEM", "STADIUM"}

// Character whitelists per field type.
const (
	titleWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789'-. "
	hpWhitelist    = "0123456789"
)

// Trainer cards carry a distinctive blue-toned banner; this HSV band plus a
// minimum pixel ratio corroborates an ambiguous keyword hit.
const (
	trainerHueMin   = 180.0
	trainerHueMax   = 260.0
	trainerSatMin   = 0.25
	trainerValMin   = 0.35
	trainerHueRatio = 0.20
	keywordConfMin  = 0.60
)

// Default region boxes used when no learned layout model is available.
var pokemonRegions = map[string]model.Box{
	"name":        {X: 0.05, Y: 0.03, W: 0.70, H: 0.09},
	"hp":          {X: 0.78, Y: 0.03, W: 0.17, H: 0.09},
	"weakness":    {X: 0.10, Y: 0.81, W: 0.18, H: 0.08},
	"resistance":  {X: 0.30, Y: 0.81, W: 0.18, H: 0.08},
	"retreat":     {X: 0.52, Y: 0.81, W: 0.26, H: 0.08},
	"artist":      {X: 0.05, Y: 0.91, W: 0.35, H: 0.05},
	"card_number": {X: 0.60, Y: 0.91, W: 0.35, H: 0.05},
}

var trainerRegions = map[string]model.Box{
	"name":        {X: 0.05, Y: 0.10, W: 0.90, H: 0.10},
	"artist":      {X: 0.05, Y: 0.91, W: 0.35, H: 0.05},
	"card_number": {X: 0.60, Y: 0.91, W: 0.35, H: 0.05},
}

// Regions that only exist on the Pokémon layout.
var pokemonOnlyRegions = map[string]bool{
	"hp": true, "weakness": true, "resistance": true, "retreat": true,
}

var (
	reUpperCode = regexp.MustCompile(`[A-Z]{2,4}`)
	reDigitRun  = regexp.MustCompile(`\d+`)
)

// RegionExtractor recognizes fields from named card regions. The learned
// layout model, when present, takes precedence over the built-in boxes; it is
// read-only after construction and safe for concurrent reads.
type RegionExtractor struct {
	engine ocr.Engine
	model  map[string]model.Box
}

// NewRegionExtractor builds a region extractor. layoutModel may be nil or
// empty, in which case built-in layout boxes are used.
func NewRegionExtractor(engine ocr.Engine, layoutModel map[string]model.Box) *RegionExtractor {
	return &RegionExtractor{engine: engine, model: layoutModel}
}

// DetectLayout classifies a card as trainer-style or pokemon-style from its
// header band. A confident keyword token decides directly; a weak one is
// corroborated against the trainer hue ratio.
func (r *RegionExtractor) DetectLayout(ctx context.Context, img image.Image) string {
	header, ok := imaging.CropNormalized(img, 0.05, 0.02, 0.90, 0.12)
	if !ok {
		return LayoutPokemon
	}
	padded := imaging.PadBorder(header, 5)

	tokens, err := r.engine.RecognizeStructured(ctx, padded, ocr.Options{PSM: 7})
	if err != nil {
		zap.L().Debug("layout detection recognition failed", zap.Error(err))
		return LayoutPokemon
	}

	best := 0.0
	for _, tok := range tokens {
		upper := strings.ToUpper(tok.Text)
		for _, kw := range trainerKeywords {
			if strings.Contains(upper, kw) && tok.Confidence > best {
				best = tok.Confidence
			}
		}
	}
	if best == 0 {
		return LayoutPokemon
	}
	if best >= keywordConfMin {
		return LayoutTrainer
	}
	ratio := imaging.HSVBandRatio(header, trainerHueMin, trainerHueMax, trainerSatMin, trainerValMin)
	if ratio >= trainerHueRatio {
		return LayoutTrainer
	}
	return LayoutPokemon
}

// Extract recognizes every region defined for the detected layout. Regions
// with degenerate boxes or unreadable crops are skipped; the result carries
// only fields with non-empty values.
func (r *RegionExtractor) Extract(ctx context.Context, img image.Image) FieldMap {
	layoutID := r.DetectLayout(ctx, img)
	regions := r.regionsFor(layoutID)

	out := FieldMap{}
	if layoutID == LayoutTrainer {
		out["card_type"] = model.KindTrainer
	} else {
		out["card_type"] = model.KindPokemon
	}
	for label, box := range regions {
		crop, ok := imaging.CropNormalized(img, box.X, box.Y, box.W, box.H)
		if !ok {
			continue
		}
		enhanced := imaging.Enhance(crop)

		text, err := r.engine.Recognize(ctx, enhanced, r.optionsFor(label))
		if err != nil {
			zap.L().Debug("region recognition failed",
				zap.String("label", label), zap.Error(err))
			continue
		}

		value := postprocessRegion(label, layoutID, text)
		if value != "" {
			out[label] = value
		}
	}
	return out
}

func (r *RegionExtractor) regionsFor(layoutID string) map[string]model.Box {
	if len(r.model) > 0 {
		if layoutID != LayoutTrainer {
			return r.model
		}
		filtered := make(map[string]model.Box, len(r.model))
		for label, box := range r.model {
			if !pokemonOnlyRegions[label] {
				filtered[label] = box
			}
		}
		return filtered
	}
	if layoutID == LayoutTrainer {
		return trainerRegions
	}
	return pokemonRegions
}

func (r *RegionExtractor) optionsFor(label string) ocr.Options {
	switch label {
	case "hp":
		return ocr.Options{PSM: 7, Whitelist: hpWhitelist}
	case "name", "artist", "set_name":
		return ocr.Options{PSM: 7, Whitelist: titleWhitelist}
	case "card_number", "set_code":
		return ocr.Options{PSM: 7}
	default:
		return ocr.Options{PSM: 6}
	}
}

// postprocessRegion cleans recognized region text per field type.
func postprocessRegion(label, layoutID, text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ""
	}
	switch label {
	case "hp":
		if m := reHP.FindStringSubmatch(cleaned); m != nil {
			return m[1]
		}
		if m := reDigitRun.FindString(cleaned); m != "" {
			if len(m) > 3 {
				m = m[:3]
			}
			return m
		}
		return cleaned
	case "card_number":
		if m := reCardNum.FindStringSubmatch(cleaned); m != nil {
			return strings.ReplaceAll(m[1], " ", "")
		}
		return cleaned
	case "set_code":
		upper := strings.ToUpper(cleaned)
		if m := reUpperCode.FindString(upper); m != "" {
			return m
		}
		return upper
	case "name":
		flat := strings.ReplaceAll(cleaned, "\n", " ")
		if layoutID == LayoutTrainer {
			flat = stripTrainerBanner(flat)
		}
		return flat
	case "artist", "set_name":
		return strings.ReplaceAll(cleaned, "\n", " ")
	default:
		return strings.ReplaceAll(cleaned, "\n", " ")
	}
}

// stripTrainerBanner removes a leading TRAINER/SUPPORTER/ITEM/STADIUM banner
// word that bleeds into the title crop on trainer cards.
func stripTrainerBanner(text string) string {
	upper := strings.ToUpper(text)
	for _, kw := range trainerKeywords {
		if strings.HasPrefix(upper, kw) {
			text = text[len(kw):]
			upper = upper[len(kw):]
		}
	}
	return strings.Trim(text, " :-")
}
