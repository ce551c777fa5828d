package verify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AccuracyFields are compared between extraction and verified data.
var AccuracyFields = []string{"name", "cardType", "hp", "stage", "evolvesFrom"}

// accuracyTargets are the per-field pass thresholds for the report.
var accuracyTargets = map[string]float64{
	"name":        0.90,
	"cardType":    0.95,
	"hp":          0.95,
	"stage":       0.90,
	"evolvesFrom": 0.85,
}

const defaultTarget = 0.85
const maxErrorExamples = 5

// FieldError is one mismatch example for the report.
type FieldError struct {
	Image     string `json:"image"`
	Extracted any    `json:"ocr"`
	Correct   any    `json:"correct"`
}

// FieldAccuracy aggregates one field's comparison results.
type FieldAccuracy struct {
	Correct  int          `json:"correct"`
	Total    int          `json:"total"`
	Accuracy float64      `json:"accuracy"`
	Errors   []FieldError `json:"errors"`
}

// SessionCounts summarizes per-card decisions. Skipped cards are counted here
// but excluded from accuracy.
type SessionCounts struct {
	TotalCards  int `json:"total_cards"`
	Verified    int `json:"verified"`
	Skipped     int `json:"skipped"`
	Corrections int `json:"corrections"`
}

// AccuracyReport holds per-field and overall accuracy for one session.
type AccuracyReport struct {
	ByField map[string]*FieldAccuracy `json:"by_field"`
	Overall FieldAccuracy             `json:"overall"`
	Session SessionCounts             `json:"session"`
}

// Accuracy computes per-field accuracy over the recorded decisions. Values
// are normalized (lower-cased, trimmed, null unified to empty) before
// comparison.
func (s *Session) Accuracy() AccuracyReport {
	report := AccuracyReport{ByField: make(map[string]*FieldAccuracy, len(AccuracyFields))}
	for _, field := range AccuracyFields {
		report.ByField[field] = &FieldAccuracy{}
	}

	for _, result := range s.results {
		report.Session.TotalCards++
		if result.Status == StatusSkipped {
			report.Session.Skipped++
			continue
		}
		report.Session.Verified++
		if result.Status == StatusCorrected {
			report.Session.Corrections++
		}

		for _, field := range AccuracyFields {
			extracted := extractField(result.Extraction, field)
			correct := extractField(result.VerifiedData, field)

			stats := report.ByField[field]
			stats.Total++
			if normalizeValue(extracted) == normalizeValue(correct) {
				stats.Correct++
			} else {
				stats.Errors = append(stats.Errors, FieldError{
					Image:     result.Image,
					Extracted: extracted,
					Correct:   correct,
				})
			}
		}
	}

	for _, stats := range report.ByField {
		if stats.Total > 0 {
			stats.Accuracy = float64(stats.Correct) / float64(stats.Total)
		}
		report.Overall.Correct += stats.Correct
		report.Overall.Total += stats.Total
	}
	if report.Overall.Total > 0 {
		report.Overall.Accuracy = float64(report.Overall.Correct) / float64(report.Overall.Total)
	}
	return report
}

// Report renders the accuracy report as markdown, listing per-field accuracy
// against targets and up to five example mismatches per field.
func (s *Session) Report() string {
	accuracy := s.Accuracy()

	if accuracy.Session.Verified == 0 {
		return fmt.Sprintf("# Verification Report: %s\n\nNo approved or corrected cards.\n", s.runID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Verification Report: %s\n\n", s.runID)
	fmt.Fprintf(&b, "**Pipeline Version:** %s\n", s.pipelineVersion)
	fmt.Fprintf(&b, "**Date:** %s\n", time.Now().Format("2006-01-02"))
	fmt.Fprintf(&b, "**Reviewer:** %s\n", s.reviewer)
	fmt.Fprintf(&b, "**Total Cards:** %d\n", accuracy.Session.TotalCards)
	fmt.Fprintf(&b, "**Verified:** %d\n", accuracy.Session.Verified)
	fmt.Fprintf(&b, "**Skipped:** %d\n", accuracy.Session.Skipped)
	fmt.Fprintf(&b, "**Corrections:** %d\n\n", accuracy.Session.Corrections)
	b.WriteString("---\n\n## Accuracy by Field\n\n")
	b.WriteString("| Field | Correct | Accuracy | Target |\n")
	b.WriteString("|-------|---------|----------|--------|\n")

	passed := 0
	for _, field := range AccuracyFields {
		stats := accuracy.ByField[field]
		target := targetFor(field)
		marker := "MISS"
		if stats.Accuracy >= target {
			marker = "OK"
			passed++
		}
		fmt.Fprintf(&b, "| **%s** | %d/%d | %.1f%% %s | %.0f%%+ |\n",
			field, stats.Correct, stats.Total, stats.Accuracy*100, marker, target*100)
	}

	fmt.Fprintf(&b, "\n**Overall Accuracy:** %.1f%% (%d/%d fields correct)\n\n",
		accuracy.Overall.Accuracy*100, accuracy.Overall.Correct, accuracy.Overall.Total)
	fmt.Fprintf(&b, "**Status:** %d/%d fields meet targets\n\n", passed, len(AccuracyFields))
	b.WriteString("---\n\n## Errors by Field\n")

	for _, field := range AccuracyFields {
		stats := accuracy.ByField[field]
		if len(stats.Errors) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s (%d errors)\n\n", field, len(stats.Errors))
		shown := stats.Errors
		if len(shown) > maxErrorExamples {
			shown = shown[:maxErrorExamples]
		}
		for _, err := range shown {
			fmt.Fprintf(&b, "- **%s:** extracted='%v' correct='%v'\n", err.Image, err.Extracted, err.Correct)
		}
		if extra := len(stats.Errors) - maxErrorExamples; extra > 0 {
			fmt.Fprintf(&b, "- (and %d more)\n", extra)
		}
	}
	return b.String()
}

func targetFor(field string) float64 {
	if t, ok := accuracyTargets[field]; ok {
		return t
	}
	return defaultTarget
}

// extractField reads a field from an extraction map, falling back to the
// notes JSON where the flattened pipeline stores structural fields like stage.
func extractField(data map[string]any, field string) any {
	if data == nil {
		return nil
	}
	if v, ok := data[field]; ok {
		return v
	}
	notesStr, ok := data["notes"].(string)
	if !ok || notesStr == "" {
		return nil
	}
	var notes map[string]any
	if err := json.Unmarshal([]byte(notesStr), &notes); err != nil {
		return nil
	}
	return notes[field]
}

// normalizeValue unifies a value for comparison: lower-cased, trimmed, with
// nil and empty string equivalent.
func normalizeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", v)))
	}
}
