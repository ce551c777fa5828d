// Package annotation derives layout models from human-drawn region boxes and
// loads them for the region extractor.
package annotation

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cardscan-cli/internal/model"
)

// ModelFileName is the layout model file written under the outputs root.
const ModelFileName = "layout_model.json"

// Model maps region labels to mean normalized boxes.
type Model map[string]model.Box

// Build averages every annotation box per label across all runs' annotations
// directories under root. Invalid annotation files are skipped with a
// warning. An empty corpus yields an empty model, not an error.
func Build(root string) (Model, error) {
	files, err := collectAnnotationFiles(root)
	if err != nil {
		return nil, err
	}

	type accum struct {
		sum   model.Box
		count int
	}
	boxes := map[string]*accum{}
	total := 0

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			zap.L().Warn("skipping unreadable annotation file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		var entries []model.Annotation
		if err := json.Unmarshal(data, &entries); err != nil {
			zap.L().Warn("skipping invalid annotation file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		for _, entry := range entries {
			if entry.Label == "" {
				continue
			}
			acc, ok := boxes[entry.Label]
			if !ok {
				acc = &accum{}
				boxes[entry.Label] = acc
			}
			acc.sum.X += entry.Box.X
			acc.sum.Y += entry.Box.Y
			acc.sum.W += entry.Box.W
			acc.sum.H += entry.Box.H
			acc.count++
			total++
		}
	}

	if len(boxes) == 0 {
		zap.L().Warn("no annotations found when building layout model")
		return Model{}, nil
	}

	out := make(Model, len(boxes))
	for label, acc := range boxes {
		n := float64(acc.count)
		out[label] = model.Box{
			X: acc.sum.X / n,
			Y: acc.sum.Y / n,
			W: acc.sum.W / n,
			H: acc.sum.H / n,
		}
	}
	zap.L().Info("built layout model",
		zap.Int("labels", len(out)), zap.Int("annotations", total))
	return out, nil
}

// Save writes the model to the layout model file under root.
func Save(root string, m Model) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return eris.Wrapf(err, "annotation: create outputs dir %s", root)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "annotation: encode layout model")
	}
	path := filepath.Join(root, ModelFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "annotation: write %s", path)
	}
	return nil
}

// Load reads the layout model under root. A missing or malformed file yields
// an empty model; region extraction then falls back to built-in boxes.
func Load(root string) Model {
	path := filepath.Join(root, ModelFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		zap.L().Warn("layout model file is invalid", zap.String("path", path), zap.Error(err))
		return Model{}
	}
	return m
}

func collectAnnotationFiles(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "annotation: read outputs root %s", root)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		annDir := filepath.Join(root, entry.Name(), "annotations")
		matches, err := filepath.Glob(filepath.Join(annDir, "*.json"))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}
