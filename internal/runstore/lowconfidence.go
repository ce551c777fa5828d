package runstore

import (
	"sort"
	"strings"
)

// TrackedFields are the dotted field paths surfaced for low-confidence review.
var TrackedFields = []string{
	"name",
	"stage",
	"hp",
	"types",
	"number",
	"setboxLetters",
	"illustrator",
	"text.attacks",
	"text.weaknesses",
	"text.resistances",
	"text.retreatCost",
}

// LowConfidenceEntry is one (card, field) pair flagged for review. It carries
// the full structured payload so review tooling never re-reads the run.
type LowConfidenceEntry struct {
	PageIndex  int            `json:"page_index"`
	Image      string         `json:"image"`
	Field      string         `json:"field"`
	Confidence float64        `json:"confidence"`
	Value      any            `json:"value"`
	Data       map[string]any `json:"data"`
}

// LowConfidence returns every tracked (card, field) whose confidence falls
// below threshold. A field with no recorded score counts as confidence 0 only
// when its value is empty; a scored field below threshold always appears.
// Entries are sorted ascending by confidence so the worst surface first.
func (s *Store) LowConfidence(runID string, threshold float64) ([]LowConfidenceEntry, error) {
	structured, err := s.ReadStructured(runID)
	if err != nil {
		return nil, err
	}

	var results []LowConfidenceEntry
	for _, entry := range structured {
		data := entry.Data
		if data == nil {
			continue
		}
		confBlock, _ := data["_confidence"].(map[string]any)

		for _, field := range TrackedFields {
			value := lookupField(data, field)
			conf, scored := lookupConfidence(confBlock, field)
			if !scored {
				if !isEmptyFieldValue(value) {
					continue
				}
				conf = 0
			}
			if conf < threshold {
				results = append(results, LowConfidenceEntry{
					PageIndex:  entry.PageIndex,
					Image:      entry.Image,
					Field:      field,
					Confidence: conf,
					Value:      value,
					Data:       data,
				})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence < results[j].Confidence
	})
	return results, nil
}

func lookupConfidence(block map[string]any, field string) (float64, bool) {
	if len(block) == 0 {
		return 0, false
	}
	if v, ok := numericValue(block[field]); ok {
		return v, true
	}
	// Nested paths may be scored at their root, e.g. "text" for "text.attacks".
	if root, _, found := strings.Cut(field, "."); found {
		if v, ok := numericValue(block[root]); ok {
			return v, true
		}
	}
	return 0, false
}

func lookupField(data map[string]any, field string) any {
	node := any(data)
	for _, part := range strings.Split(field, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = m[part]
		if !ok {
			return nil
		}
	}
	return node
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func isEmptyFieldValue(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	default:
		return false
	}
}
