package extract

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/cardscan-cli/internal/ocr"
	"github.com/sells-group/cardscan-cli/pkg/anthropic"
)

// fakeEngine returns canned recognition results.
type fakeEngine struct {
	text   string
	err    error
	tokens []ocr.Token
	tokErr error
	calls  int
}

func (f *fakeEngine) Recognize(_ context.Context, _ image.Image, _ ocr.Options) (string, error) {
	f.calls++
	return f.text, f.err
}

func (f *fakeEngine) RecognizeStructured(_ context.Context, _ image.Image, _ ocr.Options) ([]ocr.Token, error) {
	return f.tokens, f.tokErr
}

type fakeRemote struct {
	res   *RemoteResult
	err   error
	calls int
}

func (f *fakeRemote) Extract(_ context.Context, _ image.Image) (*RemoteResult, error) {
	f.calls++
	return f.res, f.err
}

type fakeLayout struct {
	fields FieldMap
	calls  int
}

func (f *fakeLayout) Extract(_ context.Context, _ image.Image) FieldMap {
	f.calls++
	return f.fields
}

type fakeGrader struct {
	grade string
}

func (f *fakeGrader) Estimate(_ context.Context, _ image.Image) string {
	return f.grade
}

type fakeClient struct {
	resp   *anthropic.MessageResponse
	err    error
	gotReq anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	require.NoError(t, png.Encode(f, solidImage(40, 56, color.RGBA{R: 200, G: 180, B: 40, A: 255})))
	return path
}
