package ocr

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".tif": true, ".tiff": true, ".webp": true, ".bmp": true,
}

// CollectInputs resolves an input path into an ordered list of card images.
// A directory yields its images sorted by name, a single image yields itself,
// and a PDF is rasterized one image per page.
func CollectInputs(ctx context.Context, inputPath string, rast Rasterizer, dpi int) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: stat input %s", inputPath)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(inputPath)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: read input dir %s", inputPath)
		}
		var images []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
				images = append(images, filepath.Join(inputPath, entry.Name()))
			}
		}
		sort.Strings(images)
		return images, nil
	}

	ext := strings.ToLower(filepath.Ext(inputPath))
	switch {
	case imageExts[ext]:
		return []string{inputPath}, nil
	case ext == ".pdf":
		outDir := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
		return rast.Rasterize(ctx, inputPath, outDir, dpi)
	default:
		return nil, eris.Errorf("ocr: unsupported input type %s", ext)
	}
}

// FilterFronts keeps only even-positioned images (1-based). Two-sided scans
// alternate back/front in that order; this is an input-pipeline policy, not a
// property of extraction, and only applies when it leaves at least one image.
func FilterFronts(images []string) []string {
	var fronts []string
	for i, img := range images {
		if (i+1)%2 == 0 {
			fronts = append(fronts, img)
		}
	}
	if len(fronts) == 0 {
		return images
	}
	zap.L().Info("front-only mode filtered images",
		zap.Int("before", len(images)), zap.Int("after", len(fronts)))
	return fronts
}
