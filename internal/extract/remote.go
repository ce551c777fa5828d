package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/sells-group/cardscan-cli/internal/imaging"
	"github.com/sells-group/cardscan-cli/internal/model"
	"github.com/sells-group/cardscan-cli/pkg/anthropic"
)

// cardSchema constrains the structured payload at the service boundary.
// Stage and energy-type values are validated post-canonicalization, so only
// the controlled vocabulary (or empty) is accepted.
const cardSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string"},
    "cardType": {"enum": ["pokemon", "trainer", "energy", ""]},
    "hp": {"type": ["integer", "string"]},
    "stage": {"enum": ["Basic", "Stage 1", "Stage 2", "Restored", "Mega Evolution", "BREAK", "LEGEND", "VMAX", "VSTAR", "V", "GX", "EX", "ex", ""]},
    "evolvesFrom": {"type": "string"},
    "types": {
      "type": "array",
      "items": {"enum": ["Colorless", "Darkness", "Dragon", "Fairy", "Fighting", "Fire", "Grass", "Lightning", "Metal", "Psychic", "Water"]}
    },
    "number": {"type": "string"},
    "setboxLetters": {"type": "string"},
    "printYear": {"type": "integer"},
    "illustrator": {"type": "string"},
    "set": {"type": "object"},
    "promo": {"type": "object"},
    "text": {"type": "object"},
    "notes": {"type": "object"},
    "_confidence": {
      "type": "object",
      "additionalProperties": {"type": "number"}
    }
  }
}`

const visionInstructions = "You are a strict Pokémon card transcriber. Respond with JSON matching the provided schema. " +
	"Never guess; if text is unreadable set the value to null and append the field name to notes.unreadable. " +
	"Convert icons to words using the 11 energy types (Colorless, Darkness, Dragon, Fairy, Fighting, Fire, Grass, Lightning, Metal, Psychic, Water). " +
	"Stages are one of: Basic, Stage 1, Stage 2, Restored, Mega Evolution, BREAK, LEGEND, VMAX, VSTAR, V, GX, EX, ex. " +
	"Classify cardType as pokemon, trainer, or energy. " +
	"Return confidence scores (0..1) in the _confidence object for each field."

const visionFormatHint = `Return JSON only. Example skeleton: {
  "name": "Charizard",
  "cardType": "pokemon",
  "stage": "Stage 2",
  "evolvesFrom": "Charmeleon",
  "hp": 170,
  "types": ["Fire"],
  "promo": {"isPromo": false, "series": null, "promoNumber": null},
  "number": "014/189",
  "set": {"name": "Darkness Ablaze", "code": "DAA", "total": 189, "symbolCode": null},
  "setboxLetters": "MEG",
  "printYear": 2020,
  "illustrator": "5ban Graphics",
  "text": {
    "abilities": [{"name": "Roaring Resolve", "text": "...", "kind": "Ability"}],
    "attacks": [{"name": "Flare Blitz", "cost": ["Fire","Fire"], "damage": "120+", "text": "..."}],
    "weaknesses": [{"type": "Water", "value": "x2"}],
    "resistances": [],
    "retreatCost": ["Colorless", "Colorless"]
  },
  "notes": {"unreadable": []},
  "_confidence": {"name": 0.95}
}`

const visionSystemPrompt = "You are a data extraction assistant. Always respond with a single JSON object that matches the provided schema."

// VisionExtractor implements RemoteExtractor over the Anthropic Messages API.
type VisionExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	debugDir  string
	schema    *jsonschema.Schema
}

// NewVisionExtractor builds the remote extractor. Failed payloads are written
// under debugDir for offline triage.
func NewVisionExtractor(client anthropic.Client, visionModel string, maxTokens int64, timeout time.Duration, debugDir string) (*VisionExtractor, error) {
	schema, err := jsonschema.CompileString("card_schema.json", cardSchema)
	if err != nil {
		return nil, eris.Wrap(err, "extract: compile card schema")
	}
	return &VisionExtractor{
		client:    client,
		model:     visionModel,
		maxTokens: maxTokens,
		timeout:   timeout,
		debugDir:  debugDir,
		schema:    schema,
	}, nil
}

// Extract sends the full image plus header and footer crops to the vision
// model and returns the canonicalized, schema-validated result.
func (v *VisionExtractor) Extract(ctx context.Context, img image.Image) (*RemoteResult, error) {
	blocks, err := v.buildBlocks(img)
	if err != nil {
		return nil, err
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	temperature := 0.0
	resp, err := v.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       v.model,
		MaxTokens:   v.maxTokens,
		System:      visionSystemPrompt,
		Blocks:      blocks,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	resp.Usage.LogCost(resp.Model, "extract")

	jsonText := stripFences(resp.Text)

	var data map[string]any
	if err := json.Unmarshal([]byte(jsonText), &data); err != nil {
		dump := v.writeDebugPayload([]byte(jsonText))
		zap.L().Warn("vision response is not valid JSON",
			zap.Error(err), zap.String("payload", dump))
		return nil, &SchemaParseError{Err: err, DumpPath: dump}
	}

	data = CanonicalizePayload(data)

	if err := v.schema.Validate(data); err != nil {
		encoded, _ := json.MarshalIndent(data, "", "  ")
		dump := v.writeDebugPayload(encoded)
		zap.L().Warn("vision payload failed schema validation",
			zap.Error(err), zap.String("payload", dump))
		return nil, &SchemaValidationError{Err: err, DumpPath: dump}
	}

	conf, _ := data["_confidence"].(map[string]any)
	return &RemoteResult{
		Fields:     flattenPayload(data),
		Confidence: CollapseConfidence(conf),
		Raw:        data,
	}, nil
}

// maxVisionEdge caps image dimensions before upload; larger scans only add
// token cost, not extraction quality.
const maxVisionEdge = 1568

func (v *VisionExtractor) buildBlocks(img image.Image) ([]anthropic.ContentBlock, error) {
	fullPNG, err := imaging.EncodePNG(capForVision(img))
	if err != nil {
		return nil, err
	}
	headerPNG, err := imaging.EncodePNG(capForVision(imaging.CropBand(img, 0, 0.25)))
	if err != nil {
		return nil, err
	}
	footerPNG, err := imaging.EncodePNG(capForVision(imaging.CropBand(img, 0.75, 1)))
	if err != nil {
		return nil, err
	}

	return []anthropic.ContentBlock{
		anthropic.TextBlock(visionInstructions),
		anthropic.TextBlock(visionFormatHint),
		anthropic.TextBlock("Primary card image:"),
		anthropic.ImageBlock(fullPNG),
		anthropic.TextBlock("Header crop (name, stage/evolves from, HP, type banner):"),
		anthropic.ImageBlock(headerPNG),
		anthropic.TextBlock("Footer crop (setbox letters, card number, illustrator, year):"),
		anthropic.ImageBlock(footerPNG),
	}, nil
}

// flattenPayload maps the structured payload onto CSV column fields. The
// structural metadata that has no column of its own (stage, types, promo,
// print year) is folded into the notes JSON.
func flattenPayload(data map[string]any) FieldMap {
	fields := FieldMap{
		"name":         strings.TrimSpace(asString(data["name"])),
		"card_type":    asString(data["cardType"]),
		"hp":           asString(data["hp"]),
		"evolves_from": strings.TrimSpace(asString(data["evolvesFrom"])),
		"card_number":  strings.TrimSpace(asString(data["number"])),
		"artist":       strings.TrimSpace(asString(data["illustrator"])),
		"rarity":       asString(data["rarity"]),
		"ability_name": "",
		"ability_text": "",
		"attacks":      "",
		"set_code":     "",
		"set_name":     "",
		"weakness":     "",
		"resistance":   "",
		"retreat":      "",
		"notes":        "",
	}

	if text, ok := data["text"].(map[string]any); ok {
		flattenText(text, fields)
	}

	if set, ok := data["set"].(map[string]any); ok {
		fields["set_name"] = asString(set["name"])
		fields["set_code"] = asString(set["code"])
	}

	notes := map[string]any{}
	if existing, ok := data["notes"].(map[string]any); ok {
		for k, val := range existing {
			notes[k] = val
		}
	}
	for key, val := range map[string]any{
		"stage":         data["stage"],
		"types":         data["types"],
		"setboxLetters": data["setboxLetters"],
		"printYear":     data["printYear"],
	} {
		if !emptyValue(val) {
			notes[key] = val
		}
	}
	if promo, ok := data["promo"].(map[string]any); ok {
		for src, dst := range map[string]string{
			"isPromo": "isPromo", "series": "promoSeries", "promoNumber": "promoNumber",
		} {
			if !emptyValue(promo[src]) {
				notes[dst] = promo[src]
			}
		}
	}
	if len(notes) > 0 {
		if encoded, err := json.Marshal(notes); err == nil {
			fields["notes"] = string(encoded)
		}
	}

	return fields
}

func flattenText(text map[string]any, fields FieldMap) {
	if abilities, ok := text["abilities"].([]any); ok {
		var names []string
		for _, a := range abilities {
			ability, ok := a.(map[string]any)
			if !ok {
				continue
			}
			name := asString(ability["name"])
			if name == "" {
				continue
			}
			names = append(names, name)
			if fields["ability_name"] == "" {
				fields["ability_name"] = name
			}
			if fields["ability_text"] == "" {
				fields["ability_text"] = asString(ability["text"])
			}
		}
		if len(names) > 0 && fields["ability_text"] == "" {
			fields["ability_text"] = strings.Join(names, "; ")
		}
	}

	if attacks, ok := text["attacks"].([]any); ok {
		var joined []string
		for _, a := range attacks {
			attack, ok := a.(map[string]any)
			if !ok {
				continue
			}
			var costs []string
			if cost, ok := attack["cost"].([]any); ok {
				for _, c := range cost {
					if s := asString(c); s != "" {
						costs = append(costs, s)
					}
				}
			}
			var pieces []string
			for _, part := range []string{
				asString(attack["name"]),
				strings.Join(costs, "/"),
				asString(attack["damage"]),
				asString(attack["text"]),
			} {
				if part != "" {
					pieces = append(pieces, part)
				}
			}
			if len(pieces) > 0 {
				joined = append(joined, strings.Join(pieces, " :: "))
			}
		}
		fields["attacks"] = strings.Join(joined, " | ")
	}

	fields["weakness"] = joinTypeValues(text["weaknesses"])
	fields["resistance"] = joinTypeValues(text["resistances"])

	if retreat, ok := text["retreatCost"].([]any); ok {
		var costs []string
		for _, c := range retreat {
			if s := asString(c); s != "" {
				costs = append(costs, s)
			}
		}
		fields["retreat"] = strings.Join(costs, " / ")
	}
}

func joinTypeValues(value any) string {
	entries, ok := value.([]any)
	if !ok {
		return ""
	}
	var parts []string
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		part := strings.TrimSpace(asString(entry["type"]) + " " + asString(entry["value"]))
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " | ")
}

func capForVision(img image.Image) image.Image {
	b := img.Bounds()
	long := b.Dx()
	if b.Dy() > long {
		long = b.Dy()
	}
	if long <= maxVisionEdge {
		return img
	}
	scale := float64(maxVisionEdge) / float64(long)
	return imaging.Resize(img, int(float64(b.Dx())*scale), int(float64(b.Dy())*scale))
}

// stripFences drops markdown code-fence lines around a JSON response.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func (v *VisionExtractor) writeDebugPayload(payload []byte) string {
	if v.debugDir == "" {
		return ""
	}
	if err := os.MkdirAll(v.debugDir, 0o755); err != nil {
		zap.L().Debug("create debug dir failed", zap.Error(err))
		return ""
	}
	existing, _ := filepath.Glob(filepath.Join(v.debugDir, "payload_*.json"))
	path := filepath.Join(v.debugDir, fmt.Sprintf("payload_%04d.json", len(existing)))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		zap.L().Debug("write debug payload failed", zap.Error(err))
		return ""
	}
	return path
}

func emptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	default:
		return false
	}
}
