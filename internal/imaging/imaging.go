// Package imaging provides the pixel-level helpers shared by the extraction
// tiers: decoding, semantic band crops, normalized-box crops, OCR-oriented
// enhancement, and the color heuristics used for layout detection.
package imaging

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/rotisserie/eris"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads and decodes an image file.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "imaging: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, eris.Wrapf(err, "imaging: decode %s", path)
	}
	return img, nil
}

// EncodePNG serializes an image to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, eris.Wrap(err, "imaging: encode png")
	}
	return buf.Bytes(), nil
}

// SHA1Hex returns the SHA-1 of the image's RGBA pixel bytes. It identifies
// card content independently of file name or container format.
func SHA1Hex(img image.Image) string {
	rgba := toRGBA(img)
	sum := sha1.Sum(rgba.Pix)
	return hex.EncodeToString(sum[:])
}

// CropBand crops a horizontal band spanning the full width, between the given
// fractions of the image height.
func CropBand(img image.Image, topFrac, bottomFrac float64) image.Image {
	b := img.Bounds()
	top := b.Min.Y + int(float64(b.Dy())*topFrac)
	bottom := b.Min.Y + int(float64(b.Dy())*bottomFrac)
	if bottom <= top {
		bottom = top + 1
	}
	return cropRect(img, image.Rect(b.Min.X, top, b.Max.X, bottom))
}

// CropNormalized crops a normalized [0,1] box scaled to pixel dimensions.
// Coordinates are clamped to [0,1] first; a box that degenerates after
// clamping yields ok=false.
func CropNormalized(img image.Image, x, y, w, h float64) (image.Image, bool) {
	b := img.Bounds()
	width := float64(b.Dx())
	height := float64(b.Dy())

	left := clamp01(x) * width
	top := clamp01(y) * height
	right := clamp01(x+w) * width
	bottom := clamp01(y+h) * height
	if right <= left || bottom <= top {
		return nil, false
	}

	rect := image.Rect(
		b.Min.X+int(left),
		b.Min.Y+int(top),
		b.Min.X+int(right),
		b.Min.Y+int(bottom),
	)
	return cropRect(img, rect), true
}

// Enhance prepares a crop for recognition: grayscale, contrast stretch, then
// an unsharp pass.
func Enhance(img image.Image) image.Image {
	gray := toGray(img)
	gray = autocontrast(gray)
	return unsharp(gray)
}

// PadBorder surrounds an image with a uniform white border. Recognition of
// narrow header bands improves with breathing room around the glyphs.
func PadBorder(img image.Image, px int) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*px, b.Dy()+2*px))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(px, px, px+b.Dx(), px+b.Dy()), img, b.Min, draw.Src)
	return out
}

// Resize scales an image to the given dimensions with Catmull-Rom resampling.
func Resize(img image.Image, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return out
}

// HSVBandRatio returns the fraction of pixels whose hue (degrees), saturation
// and value fall inside the given band.
func HSVBandRatio(img image.Image, hueMin, hueMax, satMin, valMin float64) float64 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	matched := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			h, s, v := rgbToHSV(img.At(x, y))
			if h >= hueMin && h <= hueMax && s >= satMin && v >= valMin {
				matched++
			}
		}
	}
	return float64(matched) / float64(total)
}

func cropRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// autocontrast linearly stretches gray levels so the darkest pixel maps to 0
// and the brightest to 255. Flat images are returned unchanged.
func autocontrast(gray *image.Gray) *image.Gray {
	minV, maxV := uint8(255), uint8(0)
	for _, p := range gray.Pix {
		if p < minV {
			minV = p
		}
		if p > maxV {
			maxV = p
		}
	}
	if maxV <= minV {
		return gray
	}

	scale := 255.0 / float64(maxV-minV)
	out := image.NewGray(gray.Bounds())
	for i, p := range gray.Pix {
		out.Pix[i] = uint8(float64(p-minV) * scale)
	}
	return out
}

// unsharp sharpens by subtracting a 3x3 box blur: out = 2*orig - blur.
func unsharp(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, count int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					sum += int(gray.GrayAt(b.Min.X+nx, b.Min.Y+ny).Y)
					count++
				}
			}
			blur := sum / count
			orig := int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			v := 2*orig - blur
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: uint8(v)})
		}
	}
	return out
}

func rgbToHSV(c color.Color) (h, s, v float64) {
	r16, g16, b16, _ := c.RGBA()
	r := float64(r16) / 65535.0
	g := float64(g16) / 65535.0
	b := float64(b16) / 65535.0

	maxC := max3(r, g, b)
	minC := min3(r, g, b)
	v = maxC
	delta := maxC - minC

	if maxC > 0 {
		s = delta / maxC
	}
	if delta == 0 {
		return 0, s, v
	}

	switch maxC {
	case r:
		h = 60 * ((g - b) / delta)
	case g:
		h = 60 * (2 + (b-r)/delta)
	default:
		h = 60 * (4 + (r-g)/delta)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func max3(a, b, c float64) float64 {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}

func min3(a, b, c float64) float64 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
