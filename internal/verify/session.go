// Package verify implements the resumable human verification workflow: a
// small fixed state machine over one run's cards, an append-only ground-truth
// log, and accuracy reporting.
package verify

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Per-card decision statuses.
const (
	StatusApproved  = "approved"
	StatusCorrected = "corrected"
	StatusSkipped   = "skipped"
)

// Artifact file names inside a run directory.
const (
	GroundTruthFile = "ground_truth.jsonl"
	sessionFile     = "verification_session.json"
	resumeFile      = "verification_resume.json"
	reportFile      = "verification_report.md"
)

// Correction records one field the reviewer changed.
type Correction struct {
	Extracted any `json:"ocr"`
	Corrected any `json:"correct"`
}

// Result is one reviewer decision. Immutable once written; appended to the
// ground-truth log, never edited in place.
type Result struct {
	Image             string                `json:"image"`
	ImagePath         string                `json:"image_path"`
	ImageSHA1         string                `json:"image_sha1"`
	Extraction        map[string]any        `json:"ocr_extraction"`
	VerifiedData      map[string]any        `json:"verified_data"`
	Corrections       map[string]Correction `json:"corrections"`
	Status            string                `json:"status"`
	VerifiedBy        string                `json:"verified_by"`
	VerifiedAt        string                `json:"verified_at"`
	ReviewTimeSeconds float64               `json:"review_time_seconds"`
	Notes             string                `json:"notes"`
}

// Session holds the mutable in-memory state of one verification pass over a
// run. It persists a resume checkpoint after every card so an interrupted
// session can reconstruct its cursor from the ground-truth log.
type Session struct {
	runID           string
	runDir          string
	reviewer        string
	pipelineVersion string

	startedAt    string
	completedAt  string
	results      []Result
	currentIndex int
}

type resumeState struct {
	RunID           string `json:"run_id"`
	PipelineVersion string `json:"pipeline_version"`
	Reviewer        string `json:"reviewer"`
	StartedAt       string `json:"started_at"`
	CurrentIndex    int    `json:"current_index"`
	VerifiedCount   int    `json:"verified_count"`
}

// NewSession creates a session over runDir. An existing resume checkpoint is
// loaded so review continues where it stopped; corrupt ground-truth lines are
// skipped without losing the rest.
func NewSession(runDir, runID, reviewer, pipelineVersion string) *Session {
	s := &Session{
		runID:           runID,
		runDir:          runDir,
		reviewer:        reviewer,
		pipelineVersion: pipelineVersion,
	}
	if _, err := os.Stat(s.path(resumeFile)); err == nil {
		s.loadResumeState()
	}
	zap.L().Info("initialized verification session",
		zap.String("run_id", runID),
		zap.String("reviewer", reviewer),
		zap.Int("resumed_at", s.currentIndex))
	return s
}

// Start marks the session as started. A resumed session keeps its original
// start timestamp.
func (s *Session) Start() {
	if s.startedAt == "" {
		s.startedAt = time.Now().UTC().Format(time.RFC3339)
	}
}

// Results returns the decisions recorded so far.
func (s *Session) Results() []Result {
	return s.results
}

// CurrentIndex returns the cursor position for the next card.
func (s *Session) CurrentIndex() int {
	return s.currentIndex
}

// VerifyCard records one reviewer decision: appends it to the ground-truth
// log and rewrites the resume checkpoint.
func (s *Session) VerifyCard(extraction, verifiedData map[string]any, corrections map[string]Correction, status string, reviewTime time.Duration, notes, imagePath string) (Result, error) {
	result := Result{
		Image:             filepath.Base(imagePath),
		ImagePath:         imagePath,
		ImageSHA1:         fileSHA1(imagePath),
		Extraction:        extraction,
		VerifiedData:      verifiedData,
		Corrections:       corrections,
		Status:            status,
		VerifiedBy:        s.reviewer,
		VerifiedAt:        time.Now().UTC().Format(time.RFC3339),
		ReviewTimeSeconds: reviewTime.Seconds(),
		Notes:             notes,
	}
	if imagePath == "" {
		result.Image = ""
	}

	if err := s.appendGroundTruth(result); err != nil {
		return Result{}, err
	}
	s.results = append(s.results, result)
	s.currentIndex++
	if err := s.saveResumeState(); err != nil {
		zap.L().Warn("failed to save resume checkpoint", zap.Error(err))
	}

	zap.L().Info("verified card",
		zap.Int("index", s.currentIndex),
		zap.String("image", result.Image),
		zap.String("status", status),
		zap.Int("corrections", len(corrections)),
		zap.Float64("review_seconds", result.ReviewTimeSeconds))
	return result, nil
}

// SaveSession finalizes the session: writes the session summary and the
// markdown report, then removes the resume checkpoint.
func (s *Session) SaveSession() error {
	s.completedAt = time.Now().UTC().Format(time.RFC3339)

	accuracy := s.Accuracy()
	summary := map[string]any{
		"run_id":            s.runID,
		"pipeline_version":  s.pipelineVersion,
		"reviewer":          s.reviewer,
		"started_at":        s.startedAt,
		"completed_at":      s.completedAt,
		"total_cards":       len(s.results),
		"verified_count":    accuracy.Session.Verified,
		"skipped_count":     accuracy.Session.Skipped,
		"total_corrections": accuracy.Session.Corrections,
		"accuracy":          accuracy,
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return eris.Wrap(err, "verify: encode session summary")
	}
	if err := os.WriteFile(s.path(sessionFile), data, 0o644); err != nil {
		return eris.Wrap(err, "verify: write session summary")
	}

	if err := os.WriteFile(s.path(reportFile), []byte(s.Report()), 0o644); err != nil {
		return eris.Wrap(err, "verify: write report")
	}
	zap.L().Info("saved verification report", zap.String("path", s.path(reportFile)))

	if err := os.Remove(s.path(resumeFile)); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("failed to remove resume checkpoint", zap.Error(err))
	}
	return nil
}

func (s *Session) appendGroundTruth(result Result) error {
	if err := os.MkdirAll(s.runDir, 0o755); err != nil {
		return eris.Wrapf(err, "verify: create run dir %s", s.runDir)
	}
	line, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "verify: encode ground truth entry")
	}

	f, err := os.OpenFile(s.path(GroundTruthFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "verify: open ground truth log")
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.Write(append(line, '\n')); err != nil {
		return eris.Wrap(err, "verify: append ground truth entry")
	}
	return nil
}

func (s *Session) saveResumeState() error {
	state := resumeState{
		RunID:           s.runID,
		PipelineVersion: s.pipelineVersion,
		Reviewer:        s.reviewer,
		StartedAt:       s.startedAt,
		CurrentIndex:    s.currentIndex,
		VerifiedCount:   len(s.results),
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return eris.Wrap(err, "verify: encode resume state")
	}
	return os.WriteFile(s.path(resumeFile), data, 0o644)
}

func (s *Session) loadResumeState() {
	data, err := os.ReadFile(s.path(resumeFile))
	if err != nil {
		zap.L().Warn("failed to read resume checkpoint", zap.Error(err))
		return
	}
	var state resumeState
	if err := json.Unmarshal(data, &state); err != nil {
		zap.L().Warn("resume checkpoint is invalid", zap.Error(err))
		return
	}
	s.startedAt = state.StartedAt
	s.currentIndex = state.CurrentIndex
	s.results = s.loadGroundTruth()
	zap.L().Info("resumed verification session",
		zap.Int("already_verified", len(s.results)),
		zap.Int("current_index", s.currentIndex))
}

// loadGroundTruth reads the log line by line. One corrupt line must not
// prevent reading the rest.
func (s *Session) loadGroundTruth() []Result {
	f, err := os.Open(s.path(GroundTruthFile))
	if err != nil {
		return nil
	}
	defer f.Close() //nolint:errcheck

	var results []Result
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var result Result
		if err := json.Unmarshal(line, &result); err != nil {
			zap.L().Warn("skipping corrupt ground truth line", zap.Error(err))
			continue
		}
		results = append(results, result)
	}
	return results
}

func (s *Session) path(name string) string {
	return filepath.Join(s.runDir, name)
}

func fileSHA1(path string) string {
	if path == "" {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close() //nolint:errcheck

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
