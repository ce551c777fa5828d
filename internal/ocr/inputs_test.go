package ocr

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRasterizer struct {
	pages  []string
	err    error
	gotDoc string
	gotDir string
	gotDPI int
}

func (f *fakeRasterizer) Rasterize(_ context.Context, docPath, outDir string, dpi int) ([]string, error) {
	f.gotDoc = docPath
	f.gotDir = outDir
	f.gotDPI = dpi
	return f.pages, f.err
}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestCollectInputsDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	b := touch(t, filepath.Join(dir, "b.png"))
	a := touch(t, filepath.Join(dir, "a.JPG"))
	c := touch(t, filepath.Join(dir, "c.webp"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "doc.pdf"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))

	images, err := CollectInputs(context.Background(), dir, nil, 300)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, images)
}

func TestCollectInputsSingleImage(t *testing.T) {
	t.Parallel()

	path := touch(t, filepath.Join(t.TempDir(), "card.jpeg"))
	images, err := CollectInputs(context.Background(), path, nil, 300)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, images)
}

func TestCollectInputsPDF(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := touch(t, filepath.Join(dir, "binder.pdf"))
	rast := &fakeRasterizer{pages: []string{"page-1.png", "page-2.png"}}

	images, err := CollectInputs(context.Background(), doc, rast, 200)
	require.NoError(t, err)
	assert.Equal(t, []string{"page-1.png", "page-2.png"}, images)
	assert.Equal(t, doc, rast.gotDoc)
	assert.Equal(t, filepath.Join(dir, "binder"), rast.gotDir)
	assert.Equal(t, 200, rast.gotDPI)
}

func TestCollectInputsUnsupportedType(t *testing.T) {
	t.Parallel()

	path := touch(t, filepath.Join(t.TempDir(), "cards.docx"))
	_, err := CollectInputs(context.Background(), path, nil, 300)
	assert.Error(t, err)
}

func TestCollectInputsMissingPath(t *testing.T) {
	t.Parallel()

	_, err := CollectInputs(context.Background(), filepath.Join(t.TempDir(), "nope.png"), nil, 300)
	assert.Error(t, err)
}

func TestFilterFronts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"alternating backs and fronts", []string{"p1", "p2", "p3", "p4"}, []string{"p2", "p4"}},
		{"odd count", []string{"p1", "p2", "p3"}, []string{"p2"}},
		{"single image falls back to input", []string{"p1"}, []string{"p1"}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FilterFronts(tt.in))
		})
	}
}

func TestPdfToPpmCheckMissingBinary(t *testing.T) {
	t.Parallel()

	p := NewPdfToPpm("definitely-not-a-real-binary-name")
	err := p.Check()
	require.Error(t, err)

	var missing *ConverterMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "definitely-not-a-real-binary-name", missing.Binary)
}

func TestPdfToPpmRasterizeMissingBinary(t *testing.T) {
	t.Parallel()

	p := NewPdfToPpm("definitely-not-a-real-binary-name")
	_, err := p.Rasterize(context.Background(), "doc.pdf", t.TempDir(), 300)

	var missing *ConverterMissingError
	assert.ErrorAs(t, err, &missing)
}
