package model

import "strings"

// CardKind values recognized by the extraction pipeline.
const (
	KindPokemon = "pokemon"
	KindTrainer = "trainer"
	KindEnergy  = "energy"
)

// CardRecord holds the extracted fields for one card image. Every field
// defaults to an explicit empty value; downstream consumers never need to
// distinguish a missing key from an empty string.
type CardRecord struct {
	SourceImage   string `json:"source_image"`
	PageIndex     int    `json:"page_index"`
	Name          string `json:"name"`
	HP            string `json:"hp"`
	EvolvesFrom   string `json:"evolves_from"`
	CardType      string `json:"card_type"`
	AbilityName   string `json:"ability_name"`
	AbilityText   string `json:"ability_text"`
	Attacks       string `json:"attacks"`
	SetName       string `json:"set_name"`
	SetCode       string `json:"set_code"`
	CardNumber    string `json:"card_number"`
	Artist        string `json:"artist"`
	Weakness      string `json:"weakness"`
	Resistance    string `json:"resistance"`
	Retreat       string `json:"retreat"`
	Notes         string `json:"notes"`
	Rarity        string `json:"rarity"`
	Quantity      string `json:"quantity"`
	EstGrade      string `json:"est_grade"`
	PageSHA1      string `json:"page_sha1"`
	OCRLen        int    `json:"ocr_len"`
	ParseWarnings string `json:"parse_warnings"`
}

// ColumnNames is the fixed CSV column order for CardRecord rows. The header is
// written even for zero-row outputs.
var ColumnNames = []string{
	"source_image", "page_index", "name", "hp", "evolves_from", "card_type",
	"ability_name", "ability_text", "attacks", "set_name", "set_code",
	"card_number", "artist", "weakness", "resistance", "retreat", "notes",
	"rarity", "quantity", "est_grade", "page_sha1", "ocr_len", "parse_warnings",
}

// NewCardRecord returns a record with bookkeeping fields set and quantity
// defaulted to "1".
func NewCardRecord(sourceImage string, pageIndex int) CardRecord {
	return CardRecord{
		SourceImage: sourceImage,
		PageIndex:   pageIndex,
		Quantity:    "1",
	}
}

// Field returns the value for a CSV column name. Unknown names yield "".
func (r *CardRecord) Field(name string) string {
	switch name {
	case "source_image":
		return r.SourceImage
	case "name":
		return r.Name
	case "hp":
		return r.HP
	case "evolves_from":
		return r.EvolvesFrom
	case "card_type":
		return r.CardType
	case "ability_name":
		return r.AbilityName
	case "ability_text":
		return r.AbilityText
	case "attacks":
		return r.Attacks
	case "set_name":
		return r.SetName
	case "set_code":
		return r.SetCode
	case "card_number":
		return r.CardNumber
	case "artist":
		return r.Artist
	case "weakness":
		return r.Weakness
	case "resistance":
		return r.Resistance
	case "retreat":
		return r.Retreat
	case "notes":
		return r.Notes
	case "rarity":
		return r.Rarity
	case "quantity":
		return r.Quantity
	case "est_grade":
		return r.EstGrade
	case "page_sha1":
		return r.PageSHA1
	case "parse_warnings":
		return r.ParseWarnings
	default:
		return ""
	}
}

// SetField assigns a named text field. Bookkeeping columns (source_image,
// page_index, page_sha1, ocr_len, parse_warnings) are not settable this way.
func (r *CardRecord) SetField(name, value string) {
	switch name {
	case "name":
		r.Name = value
	case "hp":
		r.HP = value
	case "evolves_from":
		r.EvolvesFrom = value
	case "card_type":
		r.CardType = value
	case "ability_name":
		r.AbilityName = value
	case "ability_text":
		r.AbilityText = value
	case "attacks":
		r.Attacks = value
	case "set_name":
		r.SetName = value
	case "set_code":
		r.SetCode = value
	case "card_number":
		r.CardNumber = value
	case "artist":
		r.Artist = value
	case "weakness":
		r.Weakness = value
	case "resistance":
		r.Resistance = value
	case "retreat":
		r.Retreat = value
	case "notes":
		r.Notes = value
	case "rarity":
		r.Rarity = value
	case "quantity":
		r.Quantity = value
	case "est_grade":
		r.EstGrade = value
	}
}

// SetWarnings joins warning codes into the comma-separated parse_warnings column.
func (r *CardRecord) SetWarnings(codes []string) {
	r.ParseWarnings = strings.Join(codes, ",")
}
