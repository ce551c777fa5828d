package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cardscan-cli/internal/annotation"
	"github.com/sells-group/cardscan-cli/internal/extract"
	"github.com/sells-group/cardscan-cli/internal/model"
	"github.com/sells-group/cardscan-cli/internal/ocr"
	"github.com/sells-group/cardscan-cli/internal/runstore"
	"github.com/sells-group/cardscan-cli/pkg/anthropic"
)

var (
	processLimit int
)

var processCmd = &cobra.Command{
	Use:   "process <input>",
	Short: "Extract card fields from a directory, image, or PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		inputPath := args[0]

		rast := ocr.NewPdfToPpm(cfg.Raster.PdfToPpmPath)
		var missing *ocr.ConverterMissingError
		if err := rast.Check(); errors.As(err, &missing) {
			// PDF inputs fail later without the converter; surface early.
			zap.L().Warn("pdf converter not available", zap.String("binary", missing.Binary))
		}

		images, err := ocr.CollectInputs(ctx, inputPath, rast, cfg.Raster.DPI)
		if err != nil {
			return err
		}
		if cfg.Process.FrontOnly {
			images = ocr.FilterFronts(images)
		}
		if processLimit > 0 && processLimit < len(images) {
			images = images[:processLimit]
		}
		if len(images) == 0 {
			return eris.Errorf("no images found for input %s", inputPath)
		}

		engine := ocr.NewTesseract(cfg.OCR.Languages, cfg.OCR.MaxTextLen)
		layoutModel := annotation.Load(cfg.Runs.Root)
		region := extract.NewRegionExtractor(engine, map[string]model.Box(layoutModel))
		grader := extract.NewSlabGrader(engine)

		var remote extract.RemoteExtractor
		if cfg.Process.RemoteEnabled {
			if cfg.Anthropic.Key == "" {
				return eris.New("anthropic key not configured; set CARDSCAN_ANTHROPIC_KEY or disable remote extraction")
			}
			vision, err := extract.NewVisionExtractor(
				anthropic.NewClient(cfg.Anthropic.Key),
				cfg.Anthropic.VisionModel,
				int64(cfg.Anthropic.MaxTokens),
				time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second,
				cfg.Process.DebugDir,
			)
			if err != nil {
				return err
			}
			remote = vision
		}

		orch := extract.NewOrchestrator(remote, region, grader, engine, cfg.Process.RemoteEnabled)

		zap.L().Info("processing images",
			zap.Int("count", len(images)),
			zap.String("input", inputPath),
			zap.Bool("remote_enabled", cfg.Process.RemoteEnabled))

		rows, structured := orch.ProcessImages(ctx, images)

		store := runstore.NewStore(cfg.Runs.Root)
		meta, err := store.StoreRun(rows, images, structured, filepath.Base(inputPath))
		if err != nil {
			return err
		}

		fmt.Printf("Stored run %s: %d rows, %d pages, structured=%v\n",
			meta.RunID, meta.Rows, len(meta.Pages), meta.HasStructured)
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "process at most N images (0 = all)")
	rootCmd.AddCommand(processCmd)
}
