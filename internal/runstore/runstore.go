// Package runstore persists processing runs and their review artifacts. A run
// directory is immutable after creation except for appended artifacts
// (annotations, feedback, verification logs).
package runstore

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cardscan-cli/internal/model"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Store manages run directories under a single outputs root.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the outputs root directory.
func (s *Store) Root() string {
	return s.root
}

// StoreRun persists one processing batch: copied page images, the CSV of all
// records, the structured sidecar, and run metadata. The CSV header is
// written even for zero rows.
func (s *Store) StoreRun(rows []model.CardRecord, images []string, structured []model.StructuredCard, sourceName string) (model.RunMeta, error) {
	runDir, err := s.newRunDir(sourceName)
	if err != nil {
		return model.RunMeta{}, err
	}

	imagesDir := filepath.Join(runDir, "images")
	annotationsDir := filepath.Join(runDir, "annotations")
	for _, dir := range []string{imagesDir, annotationsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return model.RunMeta{}, eris.Wrapf(err, "runstore: create %s", dir)
		}
	}

	var pages []model.RunPage
	destNames := map[string]string{}
	for i, src := range images {
		ext := strings.ToLower(filepath.Ext(src))
		if ext == "" {
			ext = ".png"
		}
		destName := fmt.Sprintf("page_%03d%s", i+1, ext)
		if err := copyFile(src, filepath.Join(imagesDir, destName)); err != nil {
			zap.L().Warn("skipping missing source image",
				zap.String("image", src), zap.Error(err))
			continue
		}
		destNames[src] = destName
		pages = append(pages, model.RunPage{Index: i + 1, File: destName})
	}

	if err := writeCSV(filepath.Join(runDir, "cards.csv"), rows); err != nil {
		return model.RunMeta{}, err
	}

	hasStructured := false
	if len(structured) > 0 {
		// Rewrite image references to the copied page file names.
		stored := make([]model.StructuredCard, len(structured))
		for i, entry := range structured {
			stored[i] = entry
			if dest, ok := destNames[entry.Image]; ok {
				stored[i].Image = dest
			}
		}
		if err := writeJSON(filepath.Join(runDir, "cards.json"), stored); err != nil {
			return model.RunMeta{}, err
		}
		hasStructured = true
	}

	meta := model.RunMeta{
		RunID:         filepath.Base(runDir),
		SourceName:    sourceName,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		CSV:           "cards.csv",
		Pages:         pages,
		Rows:          len(rows),
		HasStructured: hasStructured,
		RunDir:        runDir,
	}
	if err := writeJSON(filepath.Join(runDir, "run.json"), meta); err != nil {
		return model.RunMeta{}, err
	}

	zap.L().Info("stored run",
		zap.String("run_id", meta.RunID), zap.Int("pages", len(pages)))
	return meta, nil
}

// List returns metadata for every stored run, newest first. Run directories
// without a readable run.json are skipped.
func (s *Store) List() ([]model.RunMeta, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runstore: read root %s", s.root)
	}

	var runs []model.RunMeta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunID > runs[j].RunID })
	return runs, nil
}

// Load reads a run's metadata by ID.
func (s *Store) Load(runID string) (model.RunMeta, error) {
	runDir := filepath.Join(s.root, runID)
	data, err := os.ReadFile(filepath.Join(runDir, "run.json"))
	if err != nil {
		return model.RunMeta{}, eris.Wrapf(err, "runstore: load run %s", runID)
	}
	var meta model.RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return model.RunMeta{}, eris.Wrapf(err, "runstore: parse run.json for %s", runID)
	}
	meta.RunID = runID
	meta.RunDir = runDir
	return meta, nil
}

// ReadStructured reads a run's structured payload sidecar. A missing or
// malformed sidecar yields an empty list.
func (s *Store) ReadStructured(runID string) ([]model.StructuredCard, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(meta.RunDir, "cards.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runstore: read cards.json for %s", runID)
	}
	var cards []model.StructuredCard
	if err := json.Unmarshal(data, &cards); err != nil {
		zap.L().Warn("malformed cards.json", zap.String("run_id", runID), zap.Error(err))
		return nil, nil
	}
	return cards, nil
}

// ImagePath resolves a stored page image by name.
func (s *Store) ImagePath(runID, imageName string) (string, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(meta.RunDir, "images", filepath.Base(imageName))
	if _, err := os.Stat(path); err != nil {
		return "", eris.Wrapf(err, "runstore: image %s in run %s", imageName, runID)
	}
	return path, nil
}

// ReadAnnotations reads the annotation boxes for one page image.
func (s *Store) ReadAnnotations(runID, imageName string) ([]model.Annotation, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	path := annotationPath(meta.RunDir, imageName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runstore: read annotations %s", path)
	}
	var annotations []model.Annotation
	if err := json.Unmarshal(data, &annotations); err != nil {
		return nil, eris.Wrapf(err, "runstore: parse annotations %s", path)
	}
	return annotations, nil
}

// WriteAnnotations replaces the annotation boxes for one page image.
func (s *Store) WriteAnnotations(runID, imageName string, annotations []model.Annotation) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	dir := filepath.Join(meta.RunDir, "annotations")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "runstore: create %s", dir)
	}
	if err := writeJSON(annotationPath(meta.RunDir, imageName), annotations); err != nil {
		return err
	}
	zap.L().Info("saved annotations",
		zap.String("run_id", runID),
		zap.String("image", filepath.Base(imageName)),
		zap.Int("count", len(annotations)))
	return nil
}

func (s *Store) newRunDir(sourceName string) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", eris.Wrapf(err, "runstore: create root %s", s.root)
	}
	base := time.Now().UTC().Format("20060102-150405") + "_" + slugify(sourceName)
	runDir := filepath.Join(s.root, base)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(runDir); os.IsNotExist(err) {
			break
		}
		runDir = filepath.Join(s.root, fmt.Sprintf("%s_%d", base, counter))
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "runstore: create run dir %s", runDir)
	}
	return runDir, nil
}

func slugify(text string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(text), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "run"
	}
	return slug
}

func writeCSV(path string, rows []model.CardRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "runstore: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(model.ColumnNames); err != nil {
		return eris.Wrap(err, "runstore: write csv header")
	}
	for i := range rows {
		record := make([]string, len(model.ColumnNames))
		for j, col := range model.ColumnNames {
			switch col {
			case "page_index":
				record[j] = strconv.Itoa(rows[i].PageIndex)
			case "ocr_len":
				record[j] = strconv.Itoa(rows[i].OCRLen)
			default:
				record[j] = rows[i].Field(col)
			}
		}
		if err := w.Write(record); err != nil {
			return eris.Wrap(err, "runstore: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "runstore: flush csv")
	}
	zap.L().Info("wrote csv", zap.String("path", path), zap.Int("rows", len(rows)))
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "runstore: encode %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "runstore: write %s", path)
	}
	return nil
}

func annotationPath(runDir, imageName string) string {
	stem := strings.TrimSuffix(filepath.Base(imageName), filepath.Ext(imageName))
	return filepath.Join(runDir, "annotations", stem+".json")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	_, err = io.Copy(out, in)
	return err
}

// FeedbackEntry is one appended human-feedback record.
type FeedbackEntry struct {
	ID         string  `json:"id"`
	RecordedAt string  `json:"recorded_at"`
	PageIndex  int     `json:"page_index"`
	Image      string  `json:"image"`
	Field      string  `json:"field"`
	Action     string  `json:"action"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note,omitempty"`
}

// AppendFeedback appends one feedback line to the run's human_feedback.jsonl.
// Entries are line-independent; a missing ID or timestamp is filled in.
func (s *Store) AppendFeedback(runID string, entry FeedbackEntry) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt == "" {
		entry.RecordedAt = time.Now().UTC().Format(time.RFC3339)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "runstore: encode feedback entry")
	}

	path := filepath.Join(meta.RunDir, "human_feedback.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "runstore: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.Write(append(line, '\n')); err != nil {
		return eris.Wrapf(err, "runstore: append feedback to %s", path)
	}
	zap.L().Info("recorded feedback",
		zap.String("run_id", runID),
		zap.String("field", entry.Field),
		zap.String("action", entry.Action))
	return nil
}
