package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cardscan-cli/internal/runstore"
	"github.com/sells-group/cardscan-cli/internal/verify"
)

var (
	verifyReviewer  string
	verifyThreshold float64
	verifyVersion   string
)

// Bound on invalid menu inputs before a card is skipped automatically.
const maxPromptAttempts = 5

type verifyCard struct {
	data      map[string]any
	imagePath string
	pageIndex int
}

var verifyCmd = &cobra.Command{
	Use:   "verify <run-id>",
	Short: "Interactively verify extractions and build a ground-truth dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		store := runstore.NewStore(cfg.Runs.Root)
		meta, err := store.Load(runID)
		if err != nil {
			return err
		}

		cards, err := loadVerifyCards(store, runID, verifyThreshold)
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			return eris.New("no cards to verify; all are above the confidence threshold or the run has no structured payloads")
		}

		reviewer := verifyReviewer
		if reviewer == "" {
			reviewer = cfg.Review.Reviewer
		}

		session := verify.NewSession(meta.RunDir, runID, reviewer, verifyVersion)
		session.Start()

		fmt.Printf("\nVerification session for run %s\n", runID)
		fmt.Printf("  Total cards: %d\n", len(cards))
		fmt.Printf("  Already verified: %d\n\n", session.CurrentIndex())

		in := bufio.NewReader(os.Stdin)
		for i := session.CurrentIndex(); i < len(cards); i++ {
			card := cards[i]
			done, err := reviewOne(session, store, runID, in, card, i+1, len(cards))
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			if (i+1)%5 == 0 || i+1 == len(cards) {
				printProgress(session, len(cards))
			}
		}

		if err := session.SaveSession(); err != nil {
			return err
		}
		fmt.Println(session.Report())
		fmt.Printf("Ground truth: %s\n", filepath.Join(meta.RunDir, verify.GroundTruthFile))
		return nil
	},
}

// reviewOne drives the approve/correct/skip/view/quit loop for one card. The
// returned bool reports that the session ended early.
func reviewOne(session *verify.Session, store *runstore.Store, runID string, in *bufio.Reader, card verifyCard, position, total int) (bool, error) {
	start := time.Now()
	displayCard(card, position, total)

	for attempt := 0; attempt < maxPromptAttempts; attempt++ {
		fmt.Print("[a]pprove  [c]orrect  [s]kip  [v]iew image  [q]uit > ")
		choice := strings.ToLower(readLine(in))

		switch choice {
		case "a":
			_, err := session.VerifyCard(card.data, verifiedFields(card.data), nil,
				verify.StatusApproved, time.Since(start), "", card.imagePath)
			return false, err

		case "c":
			verified, corrections, ok := promptCorrections(in, card.data)
			if !ok {
				displayCard(card, position, total)
				continue
			}
			_, err := session.VerifyCard(card.data, verified, corrections,
				verify.StatusCorrected, time.Since(start), "", card.imagePath)
			if err != nil {
				return false, err
			}
			recordFeedback(store, runID, card, corrections)
			return false, nil

		case "s":
			_, err := session.VerifyCard(card.data, map[string]any{}, nil,
				verify.StatusSkipped, time.Since(start), "Skipped for later review", card.imagePath)
			return false, err

		case "v":
			fmt.Printf("Image: %s\n\n", card.imagePath)
			displayCard(card, position, total)

		case "q":
			fmt.Print("Save session before quitting? [y]es / [n]o, discard / [c]ontinue > ")
			switch strings.ToLower(readLine(in)) {
			case "y":
				if err := session.SaveSession(); err != nil {
					return true, err
				}
				fmt.Println("Session saved; rerun verify to resume.")
				return true, nil
			case "n":
				fmt.Println("Discarding session progress.")
				return true, nil
			default:
				displayCard(card, position, total)
			}

		default:
			fmt.Println("Unrecognized choice.")
		}
	}

	// Too many invalid inputs; treat as a skip so the session can move on.
	_, err := session.VerifyCard(card.data, map[string]any{}, nil,
		verify.StatusSkipped, time.Since(start), "Skipped after repeated invalid input", card.imagePath)
	return false, err
}

// recordFeedback mirrors each correction into the run's feedback log. A
// feedback write failure never aborts the review session.
func recordFeedback(store *runstore.Store, runID string, card verifyCard, corrections map[string]verify.Correction) {
	for field, corr := range corrections {
		err := store.AppendFeedback(runID, runstore.FeedbackEntry{
			PageIndex: card.pageIndex,
			Image:     filepath.Base(card.imagePath),
			Field:     field,
			Action:    "correct",
			Value:     corr.Corrected,
		})
		if err != nil {
			zap.L().Warn("failed to record correction feedback",
				zap.String("field", field), zap.Error(err))
		}
	}
}

func promptCorrections(in *bufio.Reader, data map[string]any) (map[string]any, map[string]verify.Correction, bool) {
	verified := verifiedFields(data)
	corrections := map[string]verify.Correction{}

	fmt.Println("Enter corrected values; press Enter to keep, '!' to cancel.")
	for _, field := range verify.AccuracyFields {
		current := verified[field]
		fmt.Printf("  %s [%v]: ", field, current)
		input := readLine(in)
		if input == "!" {
			return nil, nil, false
		}
		if input == "" {
			continue
		}
		corrections[field] = verify.Correction{Extracted: current, Corrected: input}
		verified[field] = input
	}
	return verified, corrections, true
}

// verifiedFields projects the comparison fields out of a structured payload.
func verifiedFields(data map[string]any) map[string]any {
	out := make(map[string]any, len(verify.AccuracyFields))
	for _, field := range verify.AccuracyFields {
		out[field] = data[field]
	}
	return out
}

func displayCard(card verifyCard, position, total int) {
	fmt.Printf("--- Card %d/%d: %s ---\n", position, total, filepath.Base(card.imagePath))
	for _, field := range verify.AccuracyFields {
		fmt.Printf("  %-12s %v\n", field+":", card.data[field])
	}
	if conf, ok := card.data["_confidence"].(map[string]any); ok && len(conf) > 0 {
		fmt.Printf("  %-12s %v\n", "confidence:", conf)
	}
}

func printProgress(session *verify.Session, total int) {
	counts := session.Accuracy().Session
	fmt.Printf("\nProgress: %d/%d reviewed (%d verified, %d skipped)\n\n",
		counts.TotalCards, total, counts.Verified, counts.Skipped)
}

func loadVerifyCards(store *runstore.Store, runID string, threshold float64) ([]verifyCard, error) {
	meta, err := store.Load(runID)
	if err != nil {
		return nil, err
	}
	structured, err := store.ReadStructured(runID)
	if err != nil {
		return nil, err
	}

	var cards []verifyCard
	for _, entry := range structured {
		if entry.Data == nil {
			continue
		}
		if threshold > 0 && averageConfidence(entry.Data) >= threshold {
			continue
		}
		cards = append(cards, verifyCard{
			data:      entry.Data,
			imagePath: filepath.Join(meta.RunDir, "images", filepath.Base(entry.Image)),
			pageIndex: entry.PageIndex,
		})
	}
	return cards, nil
}

func averageConfidence(data map[string]any) float64 {
	conf, ok := data["_confidence"].(map[string]any)
	if !ok || len(conf) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, v := range conf {
		if f, ok := v.(float64); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func readLine(in *bufio.Reader) string {
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func init() {
	verifyCmd.Flags().StringVar(&verifyReviewer, "reviewer", "", "reviewer identity (default from config)")
	verifyCmd.Flags().Float64Var(&verifyThreshold, "confidence-threshold", 0, "only verify cards with average confidence below this value")
	verifyCmd.Flags().StringVar(&verifyVersion, "pipeline-version", "v2.0", "extraction pipeline version being verified")
	rootCmd.AddCommand(verifyCmd)
}
