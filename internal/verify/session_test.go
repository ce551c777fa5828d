package verify

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(t.TempDir(), "20260830-120000_test", "tester", "v2.0")
}

func verifyOne(t *testing.T, s *Session, name, status string) {
	t.Helper()
	_, err := s.VerifyCard(
		map[string]any{"name": name, "hp": "180"},
		map[string]any{"name": name, "hp": "180"},
		nil, status, 2*time.Second, "", "")
	require.NoError(t, err)
}

func TestVerifyCardAppendsGroundTruth(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.Start()

	verifyOne(t, s, "Charizard", StatusApproved)
	verifyOne(t, s, "Zubat", StatusApproved)
	verifyOne(t, s, "Pikachu", StatusSkipped)

	assert.Equal(t, 3, s.CurrentIndex())
	assert.Len(t, s.Results(), 3)

	f, err := os.Open(filepath.Join(s.runDir, GroundTruthFile))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var result Result
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &result))
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 3, lines)
}

func TestVerifyCardRecordsDecisionDetail(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.Start()

	corrections := map[string]Correction{
		"hp": {Extracted: "60", Corrected: "160"},
	}
	result, err := s.VerifyCard(
		map[string]any{"name": "Zubat", "hp": "60"},
		map[string]any{"name": "Zubat", "hp": "160"},
		corrections, StatusCorrected, 1500*time.Millisecond, "hp misread", "")
	require.NoError(t, err)

	assert.Equal(t, StatusCorrected, result.Status)
	assert.Equal(t, "tester", result.VerifiedBy)
	assert.NotEmpty(t, result.VerifiedAt)
	assert.InDelta(t, 1.5, result.ReviewTimeSeconds, 1e-9)
	assert.Equal(t, "hp misread", result.Notes)
	assert.Equal(t, corrections, result.Corrections)
}

func TestSessionResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewSession(dir, "run-1", "tester", "v2.0")
	s.Start()
	verifyOne(t, s, "Charizard", StatusApproved)
	verifyOne(t, s, "Zubat", StatusCorrected)

	// A second session over the same directory picks up the checkpoint.
	resumed := NewSession(dir, "run-1", "tester", "v2.0")
	assert.Equal(t, 2, resumed.CurrentIndex())
	require.Len(t, resumed.Results(), 2)
	assert.Equal(t, "Charizard", resumed.Results()[0].VerifiedData["name"])
}

func TestSessionResumeSkipsCorruptLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewSession(dir, "run-1", "tester", "v2.0")
	s.Start()
	verifyOne(t, s, "Charizard", StatusApproved)
	verifyOne(t, s, "Zubat", StatusApproved)

	// Corrupt the middle of the log by hand.
	path := filepath.Join(dir, GroundTruthFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte("{broken json\n")...), 0o644))
	verifyOne(t, s, "Pikachu", StatusApproved)

	resumed := NewSession(dir, "run-1", "tester", "v2.0")
	require.Len(t, resumed.Results(), 3)
	assert.Equal(t, "Pikachu", resumed.Results()[2].VerifiedData["name"])
}

func TestSaveSessionWritesArtifactsAndClearsResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewSession(dir, "run-1", "tester", "v2.0")
	s.Start()
	verifyOne(t, s, "Charizard", StatusApproved)

	_, err := os.Stat(filepath.Join(dir, "verification_resume.json"))
	require.NoError(t, err)

	require.NoError(t, s.SaveSession())

	for _, name := range []string{"verification_session.json", "verification_report.md"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(dir, "verification_resume.json"))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, "verification_session.json"))
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "run-1", summary["run_id"])
	assert.Equal(t, float64(1), summary["total_cards"])
}

func TestFileSHA1(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0o644))

	sum := fileSHA1(path)
	assert.Len(t, sum, 40)
	assert.Equal(t, sum, fileSHA1(path))
	assert.Empty(t, fileSHA1(""))
	assert.Empty(t, fileSHA1(filepath.Join(dir, "missing.png")))
}
