package ocr

import (
	"context"
	"image"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cardscan-cli/internal/imaging"
)

// Tesseract implements Engine using the gosseract client. A fresh client is
// created per call; tesseract handles are not safe for reuse across settings.
type Tesseract struct {
	languages     []string
	maxTextLen    int
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a tesseract-backed engine. Empty languages default to
// English; maxTextLen <= 0 disables truncation.
func NewTesseract(languages []string, maxTextLen int) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{
		languages:     languages,
		maxTextLen:    maxTextLen,
		clientFactory: gosseract.NewClient,
	}
}

// Recognize runs OCR over the whole image and returns the plain text.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c, err := t.configure(img, opts)
	if err != nil {
		return "", err
	}
	defer c.Close() //nolint:errcheck

	text, err := c.Text()
	if err != nil {
		return "", eris.Wrap(err, "ocr: recognize text")
	}
	if t.maxTextLen > 0 && len(text) > t.maxTextLen {
		text = text[:t.maxTextLen]
	}
	return text, nil
}

// RecognizeStructured returns per-word tokens with confidence scores in [0,1]
// and pixel bounding boxes.
func (t *Tesseract) RecognizeStructured(ctx context.Context, img image.Image, opts Options) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := t.configure(img, opts)
	if err != nil {
		return nil, err
	}
	defer c.Close() //nolint:errcheck

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: bounding boxes")
	}

	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		tokens = append(tokens, Token{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			X:          b.Box.Min.X,
			Y:          b.Box.Min.Y,
			W:          b.Box.Dx(),
			H:          b.Box.Dy(),
		})
	}
	return tokens, nil
}

func (t *Tesseract) configure(img image.Image, opts Options) (*gosseract.Client, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	c := t.clientFactory()
	if err := c.SetImageFromBytes(data); err != nil {
		c.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "ocr: set image")
	}
	if err := c.SetLanguage(t.languages...); err != nil {
		c.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "ocr: set languages")
	}
	if opts.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(opts.PSM)); err != nil {
			c.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "ocr: set page seg mode")
		}
	}
	if opts.Whitelist != "" {
		if err := c.SetWhitelist(opts.Whitelist); err != nil {
			c.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "ocr: set whitelist")
		}
	}
	return c, nil
}
