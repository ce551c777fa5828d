package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cardscan-cli/internal/annotation"
	"github.com/sells-group/cardscan-cli/internal/model"
	"github.com/sells-group/cardscan-cli/internal/runstore"
)

var (
	annotateLabel string
	annotateBox   string
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Layout model operations",
}

var layoutBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Derive the layout model from annotations across all runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		layoutModel, err := annotation.Build(cfg.Runs.Root)
		if err != nil {
			return err
		}
		if err := annotation.Save(cfg.Runs.Root, layoutModel); err != nil {
			return err
		}
		fmt.Printf("Built layout model with %d region(s)\n", len(layoutModel))
		for label, box := range layoutModel {
			fmt.Printf("  %-16s x=%.3f y=%.3f w=%.3f h=%.3f\n", label, box.X, box.Y, box.W, box.H)
		}
		return nil
	},
}

var layoutAnnotateCmd = &cobra.Command{
	Use:   "annotate <run-id> <image>",
	Short: "Record a labeled region box for a stored page image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, imageName := args[0], args[1]
		box, err := parseBox(annotateBox)
		if err != nil {
			return err
		}

		store := runstore.NewStore(cfg.Runs.Root)
		if _, err := store.ImagePath(runID, imageName); err != nil {
			return err
		}

		existing, err := store.ReadAnnotations(runID, imageName)
		if err != nil {
			return err
		}
		// One box per label per page; re-annotating a label replaces it.
		updated := existing[:0]
		for _, entry := range existing {
			if entry.Label != annotateLabel {
				updated = append(updated, entry)
			}
		}
		updated = append(updated, model.Annotation{Label: annotateLabel, Box: box})

		if err := store.WriteAnnotations(runID, imageName, updated); err != nil {
			return err
		}
		fmt.Printf("Annotated %s/%s: %s x=%.3f y=%.3f w=%.3f h=%.3f\n",
			runID, imageName, annotateLabel, box.X, box.Y, box.W, box.H)
		return nil
	},
}

var layoutAnnotationsCmd = &cobra.Command{
	Use:   "annotations <run-id> <image>",
	Short: "List the recorded region boxes for a stored page image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := runstore.NewStore(cfg.Runs.Root)
		entries, err := store.ReadAnnotations(args[0], args[1])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No annotations recorded.")
			return nil
		}
		for _, entry := range entries {
			fmt.Printf("  %-16s x=%.3f y=%.3f w=%.3f h=%.3f\n",
				entry.Label, entry.Box.X, entry.Box.Y, entry.Box.W, entry.Box.H)
		}
		return nil
	},
}

// parseBox parses "x,y,w,h" normalized coordinates.
func parseBox(raw string) (model.Box, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return model.Box{}, eris.Errorf("box must be x,y,w,h, got %q", raw)
	}
	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return model.Box{}, eris.Wrapf(err, "parse box component %q", part)
		}
		if v < 0 || v > 1 {
			return model.Box{}, eris.Errorf("box component %v outside [0,1]", v)
		}
		vals[i] = v
	}
	return model.Box{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

func init() {
	layoutAnnotateCmd.Flags().StringVar(&annotateLabel, "label", "", "region label (name, hp, card_number, ...)")
	layoutAnnotateCmd.Flags().StringVar(&annotateBox, "box", "", "normalized box as x,y,w,h")
	_ = layoutAnnotateCmd.MarkFlagRequired("label")
	_ = layoutAnnotateCmd.MarkFlagRequired("box")

	layoutCmd.AddCommand(layoutBuildCmd)
	layoutCmd.AddCommand(layoutAnnotateCmd)
	layoutCmd.AddCommand(layoutAnnotationsCmd)
	rootCmd.AddCommand(layoutCmd)
}
