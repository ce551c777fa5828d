package extract

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/sells-group/cardscan-cli/internal/imaging"
	"github.com/sells-group/cardscan-cli/internal/model"
	"github.com/sells-group/cardscan-cli/internal/ocr"
)

// criticalFields trigger the supplemental local pass when the remote
// extraction leaves them empty.
var criticalFields = []string{"name", "hp", "card_number"}

// warningForField maps a field name to the warning code it clears when filled.
var warningForField = map[string]string{
	"hp":          WarnHPMissing,
	"name":        WarnNameGuessFailed,
	"artist":      WarnArtistMissing,
	"card_number": WarnCardNumberMissing,
}

// Orchestrator drives per-card extraction: remote first, local heuristics and
// layout regions as fallback, merged under a fill-empty-only policy. All
// collaborators are injected at construction; the orchestrator holds no
// hidden global state.
type Orchestrator struct {
	remote        RemoteExtractor
	layout        LayoutExtractor
	grader        Grader
	engine        ocr.Engine
	remoteEnabled bool
}

// NewOrchestrator wires the extraction tiers. remote may be nil when the
// remote path is disabled; layout and grader are required.
func NewOrchestrator(remote RemoteExtractor, layout LayoutExtractor, grader Grader, engine ocr.Engine, remoteEnabled bool) *Orchestrator {
	return &Orchestrator{
		remote:        remote,
		layout:        layout,
		grader:        grader,
		engine:        engine,
		remoteEnabled: remoteEnabled && remote != nil,
	}
}

// ProcessImages extracts every image in order. A failure while processing one
// card yields a minimal record carrying an exception warning and never aborts
// the batch.
func (o *Orchestrator) ProcessImages(ctx context.Context, paths []string) ([]model.CardRecord, []model.StructuredCard) {
	records := make([]model.CardRecord, 0, len(paths))
	var structured []model.StructuredCard

	for i, path := range paths {
		index := i + 1
		record, payload, err := o.processPageSafe(ctx, path, index)
		if err != nil {
			record = model.NewCardRecord(path, index)
			record.SetWarnings([]string{fmt.Sprintf("exception:%v", err)})
			zap.L().Error("card processing failed",
				zap.String("image", path), zap.Int("index", index), zap.Error(err))
		}
		records = append(records, record)
		if payload != nil {
			structured = append(structured, *payload)
		}
	}
	return records, structured
}

// processPageSafe converts panics from any extraction tier into an error so
// per-card isolation holds even for programming faults.
func (o *Orchestrator) processPageSafe(ctx context.Context, path string, index int) (record model.CardRecord, payload *model.StructuredCard, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.ProcessPage(ctx, path, index)
}

// ProcessPage extracts one card image into a CardRecord plus, when the remote
// tier succeeds, the raw structured payload.
func (o *Orchestrator) ProcessPage(ctx context.Context, path string, index int) (model.CardRecord, *model.StructuredCard, error) {
	img, err := imaging.Decode(path)
	if err != nil {
		return model.CardRecord{}, nil, err
	}

	record := model.NewCardRecord(path, index)
	record.PageSHA1 = imaging.SHA1Hex(img)

	var (
		fields     FieldMap
		warnings   []string
		payload    *model.StructuredCard
		remoteUsed bool
		ocrLen     int
	)

	if o.remoteEnabled {
		res, err := o.remote.Extract(ctx, img)
		if err != nil {
			zap.L().Warn("remote extraction failed, falling back to local",
				zap.String("image", path), zap.Error(err))
		} else {
			remoteUsed = true
			fields = res.Fields
			warnings = MissingWarnings(fields)
			payload = &model.StructuredCard{PageIndex: index, Image: path, Data: res.Raw}
			zap.L().Info("remote extraction succeeded", zap.String("image", path))
		}
	}

	if !remoteUsed {
		text := o.recognizeFullPage(ctx, img)
		ocrLen = len(text)
		fields, warnings = ParseText(text)

		layoutFields := o.layout.Extract(ctx, img)
		fillEmpty(fields, layoutFields)
		warnings = clearFilledWarnings(warnings, layoutFields)
	} else if missing := missingCritical(fields); len(missing) > 0 {
		// Remote response may lack critical fields; fill only those keys.
		text := o.recognizeFullPage(ctx, img)
		ocrLen = len(text)
		fallback, _ := ParseText(text)
		for _, key := range missing {
			if fallback[key] != "" {
				fields[key] = fallback[key]
			}
		}
		warnings = MissingWarnings(fields)

		layoutFields := o.layout.Extract(ctx, img)
		fillEmpty(fields, layoutFields)
		warnings = MissingWarnings(fields)
	}

	for key, value := range fields {
		if value != "" {
			record.SetField(key, value)
		}
	}
	record.OCRLen = ocrLen
	record.SetWarnings(warnings)

	if grade := o.grader.Estimate(ctx, img); grade != "" {
		record.EstGrade = grade
	}

	zap.L().Debug("processed card image",
		zap.String("image", path),
		zap.Int("index", index),
		zap.Int("ocr_len", ocrLen),
		zap.String("warnings", record.ParseWarnings))

	return record, payload, nil
}

// recognizeFullPage runs whole-page OCR on the enhanced image. Recognition
// errors degrade to empty text; the heuristic pass emits warnings for
// whatever it then cannot find.
func (o *Orchestrator) recognizeFullPage(ctx context.Context, img image.Image) string {
	enhanced := imaging.Enhance(img)
	text, err := o.engine.Recognize(ctx, enhanced, ocr.Options{PSM: 6})
	if err != nil {
		zap.L().Warn("full-page recognition failed", zap.Error(err))
		return ""
	}
	return text
}

// fillEmpty copies values from src into dst only where dst has no value yet.
func fillEmpty(dst, src FieldMap) {
	for key, value := range src {
		if value == "" {
			continue
		}
		if dst[key] == "" {
			dst[key] = value
		}
	}
}

// clearFilledWarnings drops warnings whose field the layout pass filled.
func clearFilledWarnings(warnings []string, filled FieldMap) []string {
	kept := warnings[:0]
	for _, w := range warnings {
		cleared := false
		for field, code := range warningForField {
			if w == code && filled[field] != "" {
				cleared = true
				break
			}
		}
		if !cleared {
			kept = append(kept, w)
		}
	}
	return kept
}

func missingCritical(fields FieldMap) []string {
	var missing []string
	for _, key := range criticalFields {
		if fields[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
