package verify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracyNormalizesValues(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.Start()

	// Case and whitespace differences still count as a match.
	_, err := s.VerifyCard(
		map[string]any{"name": "charizard ", "hp": float64(180)},
		map[string]any{"name": "Charizard", "hp": "180"},
		nil, StatusApproved, time.Second, "", "")
	require.NoError(t, err)

	report := s.Accuracy()
	assert.Equal(t, 1, report.ByField["name"].Correct)
	assert.Equal(t, 1, report.ByField["hp"].Correct)
	assert.Empty(t, report.ByField["name"].Errors)
}

func TestAccuracyCountsMismatches(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.Start()

	_, err := s.VerifyCard(
		map[string]any{"name": "Zubat", "hp": "60"},
		map[string]any{"name": "Zubat", "hp": "160"},
		map[string]Correction{"hp": {Extracted: "60", Corrected: "160"}},
		StatusCorrected, time.Second, "", "")
	require.NoError(t, err)

	report := s.Accuracy()
	assert.Equal(t, 1, report.ByField["name"].Correct)
	assert.Equal(t, 0, report.ByField["hp"].Correct)
	require.Len(t, report.ByField["hp"].Errors, 1)
	assert.Equal(t, "60", report.ByField["hp"].Errors[0].Extracted)
	assert.Equal(t, "160", report.ByField["hp"].Errors[0].Correct)
	assert.Equal(t, 1, report.Session.Corrections)
}

func TestAccuracyExcludesSkipped(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.Start()
	verifyOne(t, s, "Charizard", StatusApproved)
	verifyOne(t, s, "Zubat", StatusSkipped)

	report := s.Accuracy()
	assert.Equal(t, 2, report.Session.TotalCards)
	assert.Equal(t, 1, report.Session.Verified)
	assert.Equal(t, 1, report.Session.Skipped)
	assert.Equal(t, 1, report.ByField["name"].Total)
}

func TestAccuracyReadsStructuralFieldsFromNotes(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.Start()

	// The flattened pipeline stores stage inside the notes JSON string.
	_, err := s.VerifyCard(
		map[string]any{"name": "Charizard", "notes": `{"stage": "Stage 2"}`},
		map[string]any{"name": "Charizard", "stage": "stage 2"},
		nil, StatusApproved, time.Second, "", "")
	require.NoError(t, err)

	report := s.Accuracy()
	assert.Equal(t, 1, report.ByField["stage"].Correct)
}

func TestReportContent(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.Start()
	verifyOne(t, s, "Charizard", StatusApproved)

	_, err := s.VerifyCard(
		map[string]any{"name": "Zubat", "hp": "60"},
		map[string]any{"name": "Zubat", "hp": "160"},
		map[string]Correction{"hp": {Extracted: "60", Corrected: "160"}},
		StatusCorrected, time.Second, "", "card.png")
	require.NoError(t, err)

	report := s.Report()
	assert.Contains(t, report, "# Verification Report: 20260830-120000_test")
	assert.Contains(t, report, "**Reviewer:** tester")
	assert.Contains(t, report, "| **name** | 2/2 | 100.0% OK | 90%+ |")
	assert.Contains(t, report, "| **hp** | 1/2 | 50.0% MISS | 95%+ |")
	assert.Contains(t, report, "## Errors by Field")
	assert.Contains(t, report, "extracted='60' correct='160'")
}

func TestReportCapsErrorExamples(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.Start()

	for i := 0; i < 8; i++ {
		_, err := s.VerifyCard(
			map[string]any{"name": fmt.Sprintf("Wrong %d", i)},
			map[string]any{"name": fmt.Sprintf("Right %d", i)},
			nil, StatusCorrected, time.Second, "", "")
		require.NoError(t, err)
	}

	report := s.Report()
	assert.Contains(t, report, "### name (8 errors)")
	assert.Contains(t, report, "(and 3 more)")
}

func TestReportEmptySession(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.Start()
	assert.Contains(t, s.Report(), "No approved or corrected cards")
}

func TestTargetFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.95, targetFor("hp"))
	assert.Equal(t, 0.90, targetFor("name"))
	assert.Equal(t, 0.85, targetFor("unknown_field"))
}

func TestNormalizeValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", normalizeValue(nil))
	assert.Equal(t, "", normalizeValue(""))
	assert.Equal(t, "charizard", normalizeValue(" Charizard "))
	assert.Equal(t, "180", normalizeValue(float64(180)))
	assert.Equal(t, "180", normalizeValue("180"))
	assert.Equal(t, normalizeValue(nil), normalizeValue(""))
}
