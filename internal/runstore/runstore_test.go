package runstore

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cardscan-cli/internal/model"
)

func writePageImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.SetRGBA(2, 2, color.RGBA{R: 250, A: 255})
	require.NoError(t, png.Encode(f, img))
	return path
}

func storeSampleRun(t *testing.T, store *Store) model.RunMeta {
	t.Helper()

	srcDir := t.TempDir()
	img1 := writePageImage(t, srcDir, "scan-a.png")
	img2 := writePageImage(t, srcDir, "scan-b.png")

	row1 := model.NewCardRecord(img1, 1)
	row1.Name = "Charizard"
	row1.HP = "180"
	row2 := model.NewCardRecord(img2, 2)
	row2.Name = "Zubat"

	structured := []model.StructuredCard{
		{PageIndex: 1, Image: img1, Data: map[string]any{"name": "Charizard"}},
	}

	meta, err := store.StoreRun(
		[]model.CardRecord{row1, row2},
		[]string{img1, img2},
		structured,
		"Binder Scans",
	)
	require.NoError(t, err)
	return meta
}

func TestStoreRunLaysOutDirectory(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	meta := storeSampleRun(t, store)

	assert.Contains(t, meta.RunID, "binder-scans")
	assert.Equal(t, 2, meta.Rows)
	assert.True(t, meta.HasStructured)
	require.Len(t, meta.Pages, 2)
	assert.Equal(t, "page_001.png", meta.Pages[0].File)
	assert.Equal(t, "page_002.png", meta.Pages[1].File)

	for _, name := range []string{"cards.csv", "cards.json", "run.json"} {
		_, err := os.Stat(filepath.Join(meta.RunDir, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(meta.RunDir, "images", "page_001.png"))
	assert.NoError(t, err)
}

func TestStoreRunCSVContents(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	meta := storeSampleRun(t, store)

	f, err := os.Open(filepath.Join(meta.RunDir, "cards.csv"))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, model.ColumnNames, records[0])

	header := records[0]
	byCol := func(row []string, col string) string {
		for i, name := range header {
			if name == col {
				return row[i]
			}
		}
		return ""
	}
	assert.Equal(t, "Charizard", byCol(records[1], "name"))
	assert.Equal(t, "1", byCol(records[1], "page_index"))
	assert.Equal(t, "0", byCol(records[1], "ocr_len"))
	assert.Equal(t, "Zubat", byCol(records[2], "name"))
}

func TestStoreRunZeroRowsStillWritesHeader(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	meta, err := store.StoreRun(nil, nil, nil, "empty batch")
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(meta.RunDir, "cards.csv"))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.ColumnNames, records[0])
	assert.False(t, meta.HasStructured)
}

func TestStoreRunRewritesStructuredImageRefs(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	meta := storeSampleRun(t, store)

	structured, err := store.ReadStructured(meta.RunID)
	require.NoError(t, err)
	require.Len(t, structured, 1)
	assert.Equal(t, "page_001.png", structured[0].Image)
	assert.Equal(t, "Charizard", structured[0].Data["name"])
}

func TestListAndLoad(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	meta1 := storeSampleRun(t, store)
	meta2 := storeSampleRun(t, store)

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first; same-second runs get a collision suffix that still sorts after.
	assert.Equal(t, meta2.RunID, runs[0].RunID)
	assert.Equal(t, meta1.RunID, runs[1].RunID)

	loaded, err := store.Load(meta1.RunID)
	require.NoError(t, err)
	assert.Equal(t, meta1.RunID, loaded.RunID)
	assert.Equal(t, "Binder Scans", loaded.SourceName)
	assert.NotEmpty(t, loaded.RunDir)
}

func TestListEmptyRoot(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "nonexistent"))
	runs, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLoadUnknownRun(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	_, err := store.Load("20990101-000000_missing")
	assert.Error(t, err)
}

func TestReadStructuredMissingSidecar(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	meta, err := store.StoreRun(nil, nil, nil, "no sidecar")
	require.NoError(t, err)

	structured, err := store.ReadStructured(meta.RunID)
	require.NoError(t, err)
	assert.Nil(t, structured)
}

func TestReadStructuredMalformedSidecar(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	meta, err := store.StoreRun(nil, nil, nil, "bad sidecar")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(meta.RunDir, "cards.json"), []byte("{not json"), 0o644))

	structured, err := store.ReadStructured(meta.RunID)
	require.NoError(t, err)
	assert.Nil(t, structured)
}

func TestAnnotationsRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	meta := storeSampleRun(t, store)

	boxes := []model.Annotation{
		{Label: "hp", Box: model.Box{X: 0.78, Y: 0.03, W: 0.17, H: 0.09}},
		{Label: "name", Box: model.Box{X: 0.05, Y: 0.03, W: 0.70, H: 0.09}},
	}
	require.NoError(t, store.WriteAnnotations(meta.RunID, "page_001.png", boxes))

	got, err := store.ReadAnnotations(meta.RunID, "page_001.png")
	require.NoError(t, err)
	assert.Equal(t, boxes, got)

	// Pages without annotations read back empty, not as an error.
	got, err = store.ReadAnnotations(meta.RunID, "page_002.png")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAppendFeedback(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	meta := storeSampleRun(t, store)

	for i := 0; i < 3; i++ {
		err := store.AppendFeedback(meta.RunID, FeedbackEntry{
			PageIndex: i + 1,
			Image:     "page_001.png",
			Field:     "hp",
			Action:    "correct",
			Value:     "180",
		})
		require.NoError(t, err)
	}

	f, err := os.Open(filepath.Join(meta.RunDir, "human_feedback.jsonl"))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	var entries []FeedbackEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry FeedbackEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.NotEmpty(t, entry.ID)
		assert.NotEmpty(t, entry.RecordedAt)
		assert.Equal(t, "hp", entry.Field)
	}
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Binder Scans", "binder-scans"},
		{"cards_2020.pdf", "cards-2020-pdf"},
		{"///", "run"},
		{"", "run"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), tt.in)
	}
}
