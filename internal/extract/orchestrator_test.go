package extract

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cardscan-cli/internal/model"
)

const fullPageText = "Zubat\nHP 60\nSupersonic 20\nIllus. Kagemaru Himeno\n057/189"

func TestOrchestratorRemoteSuccess(t *testing.T) {
	t.Parallel()

	path := writeTestPNG(t, t.TempDir(), "card.png")
	remote := &fakeRemote{res: &RemoteResult{
		Fields: FieldMap{
			"name":        "Charizard",
			"hp":          "180",
			"card_number": "014/189",
			"artist":      "5ban Graphics",
		},
		Confidence: model.ConfidenceMap{"name": 0.97},
		Raw:        map[string]any{"name": "Charizard"},
	}}
	layout := &fakeLayout{}
	engine := &fakeEngine{text: fullPageText}

	o := NewOrchestrator(remote, layout, &fakeGrader{}, engine, true)
	record, payload, err := o.ProcessPage(context.Background(), path, 1)
	require.NoError(t, err)

	assert.Equal(t, "Charizard", record.Name)
	assert.Equal(t, "180", record.HP)
	assert.Equal(t, "014/189", record.CardNumber)
	assert.Equal(t, "1", record.Quantity)
	assert.NotEmpty(t, record.PageSHA1)
	assert.Empty(t, record.ParseWarnings)

	require.NotNil(t, payload)
	assert.Equal(t, 1, payload.PageIndex)
	assert.Equal(t, map[string]any{"name": "Charizard"}, payload.Data)

	// No critical field missing, so the local tiers stay idle.
	assert.Zero(t, engine.calls)
	assert.Zero(t, layout.calls)
}

func TestOrchestratorSupplementalFillNeverOverwrites(t *testing.T) {
	t.Parallel()

	path := writeTestPNG(t, t.TempDir(), "card.png")
	remote := &fakeRemote{res: &RemoteResult{
		Fields: FieldMap{
			"name":   "Charizard",
			"hp":     "180",
			"artist": "5ban Graphics",
			// card_number left empty triggers the supplemental pass.
		},
		Raw: map[string]any{"name": "Charizard"},
	}}
	layout := &fakeLayout{fields: FieldMap{
		"hp":       "999",
		"weakness": "Water x2",
	}}
	engine := &fakeEngine{text: fullPageText}

	o := NewOrchestrator(remote, layout, &fakeGrader{}, engine, true)
	record, _, err := o.ProcessPage(context.Background(), path, 1)
	require.NoError(t, err)

	// Remote values win; the fallback only fills what was empty.
	assert.Equal(t, "Charizard", record.Name)
	assert.Equal(t, "180", record.HP)
	assert.Equal(t, "057/189", record.CardNumber)
	assert.Equal(t, "Water x2", record.Weakness)
	assert.Empty(t, record.ParseWarnings)
	assert.Equal(t, 1, layout.calls)
}

func TestOrchestratorLocalFallbackOnTransportError(t *testing.T) {
	t.Parallel()

	path := writeTestPNG(t, t.TempDir(), "card.png")
	remote := &fakeRemote{err: &TransportError{Err: assert.AnError}}
	layout := &fakeLayout{fields: FieldMap{"weakness": "Fighting x2"}}
	engine := &fakeEngine{text: fullPageText}

	o := NewOrchestrator(remote, layout, &fakeGrader{}, engine, true)
	record, payload, err := o.ProcessPage(context.Background(), path, 3)
	require.NoError(t, err)

	assert.Nil(t, payload)
	assert.Equal(t, "Zubat", record.Name)
	assert.Equal(t, "60", record.HP)
	assert.Equal(t, "057/189", record.CardNumber)
	assert.Equal(t, "Kagemaru Himeno", record.Artist)
	assert.Equal(t, "Fighting x2", record.Weakness)
	assert.Equal(t, len(fullPageText), record.OCRLen)
	assert.Equal(t, 3, record.PageIndex)
}

func TestOrchestratorRemoteDisabled(t *testing.T) {
	t.Parallel()

	path := writeTestPNG(t, t.TempDir(), "card.png")
	remote := &fakeRemote{res: &RemoteResult{Fields: FieldMap{"name": "x"}}}
	engine := &fakeEngine{text: fullPageText}

	o := NewOrchestrator(remote, &fakeLayout{}, &fakeGrader{}, engine, false)
	record, payload, err := o.ProcessPage(context.Background(), path, 1)
	require.NoError(t, err)

	assert.Zero(t, remote.calls)
	assert.Nil(t, payload)
	assert.Equal(t, "Zubat", record.Name)
}

func TestOrchestratorLayoutFillClearsWarnings(t *testing.T) {
	t.Parallel()

	path := writeTestPNG(t, t.TempDir(), "card.png")
	// Page text missing HP and artist; the layout pass recovers HP only.
	engine := &fakeEngine{text: "Zubat\nSupersonic 20\n057/189"}
	layout := &fakeLayout{fields: FieldMap{"hp": "60"}}

	o := NewOrchestrator(nil, layout, &fakeGrader{}, engine, false)
	record, _, err := o.ProcessPage(context.Background(), path, 1)
	require.NoError(t, err)

	assert.Equal(t, "60", record.HP)
	assert.NotContains(t, record.ParseWarnings, WarnHPMissing)
	assert.Contains(t, record.ParseWarnings, WarnArtistMissing)
}

func TestOrchestratorGrade(t *testing.T) {
	t.Parallel()

	path := writeTestPNG(t, t.TempDir(), "card.png")
	o := NewOrchestrator(nil, &fakeLayout{}, &fakeGrader{grade: "10"}, &fakeEngine{text: fullPageText}, false)

	record, _, err := o.ProcessPage(context.Background(), path, 1)
	require.NoError(t, err)
	assert.Equal(t, "10", record.EstGrade)
}

func TestProcessImagesIsolatesFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good1 := writeTestPNG(t, dir, "card1.png")
	missing := filepath.Join(dir, "card2.png")
	good2 := writeTestPNG(t, dir, "card3.png")

	o := NewOrchestrator(nil, &fakeLayout{}, &fakeGrader{}, &fakeEngine{text: fullPageText}, false)
	records, structured := o.ProcessImages(context.Background(), []string{good1, missing, good2})

	require.Len(t, records, 3)
	assert.Empty(t, structured)

	assert.Equal(t, "Zubat", records[0].Name)
	assert.Equal(t, "Zubat", records[2].Name)
	assert.Equal(t, 1, records[0].PageIndex)
	assert.Equal(t, 3, records[2].PageIndex)

	assert.True(t, strings.HasPrefix(records[1].ParseWarnings, "exception:"))
	assert.Equal(t, missing, records[1].SourceImage)
	assert.Equal(t, 2, records[1].PageIndex)
	assert.Empty(t, records[1].Name)
}

func TestFillEmpty(t *testing.T) {
	t.Parallel()

	dst := FieldMap{"name": "Charizard", "hp": ""}
	fillEmpty(dst, FieldMap{"name": "Zubat", "hp": "60", "artist": ""})

	assert.Equal(t, "Charizard", dst["name"])
	assert.Equal(t, "60", dst["hp"])
	_, ok := dst["artist"]
	assert.False(t, ok)
}
