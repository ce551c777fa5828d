package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCardRecord(t *testing.T) {
	t.Parallel()

	r := NewCardRecord("scans/card.png", 3)

	assert.Equal(t, "scans/card.png", r.SourceImage)
	assert.Equal(t, 3, r.PageIndex)
	assert.Equal(t, "1", r.Quantity)
	assert.Empty(t, r.Name)
	assert.Empty(t, r.ParseWarnings)
}

func TestFieldRoundTrip(t *testing.T) {
	t.Parallel()

	settable := []string{
		"name", "hp", "evolves_from", "card_type", "ability_name",
		"ability_text", "attacks", "set_name", "set_code", "card_number",
		"artist", "weakness", "resistance", "retreat", "notes", "rarity",
		"quantity", "est_grade",
	}

	var r CardRecord
	for _, name := range settable {
		r.SetField(name, "v:"+name)
	}
	for _, name := range settable {
		assert.Equal(t, "v:"+name, r.Field(name), name)
	}
}

func TestSetFieldIgnoresBookkeepingColumns(t *testing.T) {
	t.Parallel()

	r := NewCardRecord("card.png", 1)
	r.SetField("source_image", "other.png")
	r.SetField("page_sha1", "deadbeef")
	r.SetField("unknown_column", "x")

	assert.Equal(t, "card.png", r.SourceImage)
	assert.Empty(t, r.PageSHA1)
}

func TestFieldUnknownName(t *testing.T) {
	t.Parallel()

	r := NewCardRecord("card.png", 1)
	assert.Empty(t, r.Field("no_such_column"))
}

func TestSetWarnings(t *testing.T) {
	t.Parallel()

	var r CardRecord
	r.SetWarnings([]string{"hp_missing", "artist_missing"})
	assert.Equal(t, "hp_missing,artist_missing", r.ParseWarnings)

	r.SetWarnings(nil)
	assert.Empty(t, r.ParseWarnings)
}

func TestColumnNamesCoverRecord(t *testing.T) {
	t.Parallel()

	// Every column except the numeric bookkeeping pair resolves via Field.
	r := CardRecord{SourceImage: "x", PageSHA1: "y", ParseWarnings: "z"}
	seen := map[string]bool{}
	for _, name := range ColumnNames {
		assert.False(t, seen[name], "duplicate column %q", name)
		seen[name] = true
	}
	assert.Len(t, ColumnNames, 23)
	assert.Equal(t, "x", r.Field("source_image"))
	assert.Equal(t, "y", r.Field("page_sha1"))
	assert.Equal(t, "z", r.Field("parse_warnings"))
}
