package extract

import (
	"strconv"
	"strings"

	"github.com/sells-group/cardscan-cli/internal/model"
)

// EnergyTypes is the controlled vocabulary for card energy types.
var EnergyTypes = []string{
	"Colorless", "Darkness", "Dragon", "Fairy", "Fighting", "Fire",
	"Grass", "Lightning", "Metal", "Psychic", "Water",
}

// Stages is the controlled vocabulary for evolution stages and mechanics.
var Stages = []string{
	"Basic", "Stage 1", "Stage 2", "Restored", "Mega Evolution",
	"BREAK", "LEGEND", "VMAX", "VSTAR", "V", "GX", "EX", "ex",
}

// Print years outside this window are treated as recognition noise.
const (
	minPrintYear = 1990
	maxPrintYear = 2100
)

var typeSynonyms = map[string]string{
	"electric": "Lightning",
	"dark":     "Darkness",
	"steel":    "Metal",
	"normal":   "Colorless",
}

var stageSynonyms = map[string]string{
	"mega":   "Mega Evolution",
	"stage1": "Stage 1",
	"stage2": "Stage 2",
}

// CanonicalType maps a free-text energy type to the controlled vocabulary.
// Unknown values pass through trimmed so validation can flag them.
func CanonicalType(raw string) string {
	t := strings.TrimSpace(raw)
	if t == "" {
		return ""
	}
	lower := strings.ToLower(t)
	if mapped, ok := typeSynonyms[lower]; ok {
		return mapped
	}
	for _, canonical := range EnergyTypes {
		if strings.EqualFold(canonical, t) {
			return canonical
		}
	}
	return t
}

// CanonicalStage maps a free-text stage to the controlled vocabulary. Exact
// matches win first so "EX" and "ex" stay distinct.
func CanonicalStage(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, canonical := range Stages {
		if canonical == s {
			return canonical
		}
	}
	lower := strings.ToLower(s)
	if mapped, ok := stageSynonyms[lower]; ok {
		return mapped
	}
	for _, canonical := range Stages {
		if strings.EqualFold(canonical, s) {
			return canonical
		}
	}
	return s
}

// CanonicalizePayload normalizes a raw structured payload in place-safe copy
// form: null sentinels become empty containers, numeric fields are coerced,
// synonyms collapse to the controlled vocabulary, short codes are upper-cased,
// and the confidence block is reduced to flat scalars.
func CanonicalizePayload(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}

	if name, ok := out["name"]; ok {
		out["name"] = asString(name)
	}
	if ev, ok := out["evolvesFrom"]; ok {
		out["evolvesFrom"] = asString(ev)
	}
	if il, ok := out["illustrator"]; ok {
		out["illustrator"] = asString(il)
	}
	if num, ok := out["number"]; ok {
		out["number"] = asString(num)
	}

	out["hp"] = canonicalHP(out["hp"])
	out["stage"] = CanonicalStage(asString(out["stage"]))
	out["cardType"] = strings.ToLower(strings.TrimSpace(asString(out["cardType"])))

	if rawTypes, ok := out["types"].([]any); ok {
		types := make([]any, 0, len(rawTypes))
		for _, t := range rawTypes {
			if s := CanonicalType(asString(t)); s != "" {
				types = append(types, s)
			}
		}
		out["types"] = types
	} else if out["types"] == nil {
		out["types"] = []any{}
	}

	if letters := asString(out["setboxLetters"]); letters != "" {
		out["setboxLetters"] = strings.ToUpper(strings.TrimSpace(letters))
	} else {
		out["setboxLetters"] = ""
	}

	if year, ok := canonicalYear(out["printYear"]); ok {
		out["printYear"] = year
	} else {
		delete(out, "printYear")
	}

	out["set"] = canonicalSetBlock(out["set"])
	out["promo"] = canonicalPromoBlock(out["promo"])
	out["text"] = canonicalTextBlock(out["text"])

	if out["notes"] == nil {
		out["notes"] = map[string]any{}
	}

	conf, _ := out["_confidence"].(map[string]any)
	out["_confidence"] = collapsedConfidenceValues(conf)

	return out
}

// CollapseConfidence flattens a raw confidence block into a clamped
// ConfidenceMap. Nested sub-objects are averaged over their numeric members;
// entries with no numeric content score 0.
func CollapseConfidence(raw map[string]any) model.ConfidenceMap {
	out := make(model.ConfidenceMap, len(raw))
	for field, value := range raw {
		out.Set(field, scalarConfidence(value))
	}
	return out
}

func collapsedConfidenceValues(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for field, value := range raw {
		out[field] = scalarConfidence(value)
	}
	return out
}

func scalarConfidence(value any) float64 {
	switch v := value.(type) {
	case float64:
		return model.Clamp(v)
	case int:
		return model.Clamp(float64(v))
	case map[string]any:
		var sum float64
		var n int
		for _, member := range v {
			if f, ok := asFloat(member); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return model.Clamp(sum / float64(n))
	default:
		return 0
	}
}

func canonicalHP(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return int(v)
	case int:
		return v
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return s
	default:
		return ""
	}
}

func canonicalYear(value any) (int, bool) {
	f, ok := asFloat(value)
	if !ok {
		return 0, false
	}
	year := int(f)
	if year < minPrintYear || year > maxPrintYear {
		return 0, false
	}
	return year, true
}

func canonicalSetBlock(value any) map[string]any {
	set, ok := value.(map[string]any)
	if !ok {
		return map[string]any{"name": "", "code": "", "symbolCode": ""}
	}
	for _, key := range []string{"name", "symbolCode"} {
		if set[key] == nil {
			set[key] = ""
		} else {
			set[key] = asString(set[key])
		}
	}
	set["code"] = strings.ToUpper(asString(set["code"]))
	if set["total"] == nil {
		delete(set, "total")
	}
	return set
}

func canonicalPromoBlock(value any) map[string]any {
	promo, ok := value.(map[string]any)
	if !ok {
		return map[string]any{"isPromo": false, "series": "", "promoNumber": ""}
	}
	for _, key := range []string{"series", "promoNumber"} {
		if promo[key] == nil {
			promo[key] = ""
		}
	}
	if promo["isPromo"] == nil {
		promo["isPromo"] = false
	}
	return promo
}

func canonicalTextBlock(value any) map[string]any {
	text, ok := value.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	if attacks, ok := text["attacks"].([]any); ok {
		for _, a := range attacks {
			attack, ok := a.(map[string]any)
			if !ok {
				continue
			}
			if attack["text"] == nil {
				attack["text"] = ""
			}
			if attack["damage"] == nil {
				attack["damage"] = ""
			}
			if cost, ok := attack["cost"].([]any); ok {
				for i, c := range cost {
					cost[i] = CanonicalType(asString(c))
				}
			}
		}
	}
	if abilities, ok := text["abilities"].([]any); ok {
		for _, a := range abilities {
			if ability, ok := a.(map[string]any); ok && ability["text"] == nil {
				ability["text"] = ""
			}
		}
	}
	return text
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
