package extract

import (
	"regexp"
	"strings"
)

// Warning codes emitted when a critical field cannot be derived.
const (
	WarnHPMissing         = "hp_missing"
	WarnNameGuessFailed   = "name_guess_failed"
	WarnArtistMissing     = "artist_missing"
	WarnCardNumberMissing = "card_number_missing"
)

var (
	reHP      = regexp.MustCompile(`(?i)\bHP\s*(\d{1,3})\b`)
	reEvolves = regexp.MustCompile(`(?i)\bEvolves\s+from\s+([A-Za-z0-9'\-. ]+)`)
	reArtist  = regexp.MustCompile(`(?i)\bIllus\.\s*([A-Za-z0-9'\-. ]+)`)
	reCardNum = regexp.MustCompile(`\b(\d{1,3}\s*/\s*\d{1,3})\b`)
	// Set code: a 2-4 letter run directly ahead of a card-number token.
	reSetCode  = regexp.MustCompile(`\b([A-Z]{2,4})\s*\d{1,3}\s*/\s*\d{1,3}\b`)
	reWeakness = regexp.MustCompile(`(?i)\bweakness\b`)
	reResist   = regexp.MustCompile(`(?i)\bresistance\b`)
	reRetreat  = regexp.MustCompile(`(?i)\bretreat\b`)
	reAbility  = regexp.MustCompile(`(?i)\bAbility\b\s*([A-Za-z0-9'\- ]+)`)
	// Attack lines: name then damage. The huge-digit alternative absorbs OCR
	// noise runs so they do not register as plausible damage numbers.
	reAttack = regexp.MustCompile(`([A-Za-z][A-Za-z0-9'\- ]+?)\s+(\d{10,}|[1-9]\d{0,2}\+?)\b`)
	reLetter = regexp.MustCompile(`[A-Za-z]`)
)

const abilityBlockMaxChars = 400

// Set code to set name mapping. Grows as codes are confirmed.
var setCodeNames = map[string]string{}

// ParseText derives card fields from raw recognized page text. It never
// fails: an unmatched pattern yields an empty field and, for critical fields,
// a warning code. Identical input always yields identical output.
func ParseText(text string) (FieldMap, []string) {
	out := FieldMap{}
	var warnings []string

	if m := reHP.FindStringSubmatch(text); m != nil {
		out["hp"] = m[1]
	} else {
		out["hp"] = ""
		warnings = append(warnings, WarnHPMissing)
	}

	name := firstLineBefore(text, reHP)
	out["name"] = name
	if name == "" {
		warnings = append(warnings, WarnNameGuessFailed)
	}

	if m := reEvolves.FindStringSubmatch(text); m != nil {
		out["evolves_from"] = strings.TrimSpace(m[1])
	} else {
		out["evolves_from"] = ""
	}

	if m := reArtist.FindStringSubmatch(text); m != nil {
		out["artist"] = strings.TrimSpace(m[1])
	} else {
		out["artist"] = ""
	}
	if out["artist"] == "" {
		warnings = append(warnings, WarnArtistMissing)
	}

	numMatch := reCardNum.FindStringSubmatch(text)
	if numMatch != nil {
		out["card_number"] = strings.ReplaceAll(numMatch[1], " ", "")
	} else {
		out["card_number"] = ""
		warnings = append(warnings, WarnCardNumberMissing)
	}

	out["set_code"] = ""
	out["set_name"] = ""
	if numMatch != nil {
		if m := reSetCode.FindStringSubmatch(text); m != nil {
			out["set_code"] = m[1]
			out["set_name"] = setCodeNames[m[1]]
		}
	}

	if m := reAbility.FindStringSubmatchIndex(text); m != nil {
		out["ability_name"] = strings.TrimSpace(text[m[2]:m[3]])
		stops := []*regexp.Regexp{reAttack, reWeakness, reResist, reRetreat, reCardNum}
		out["ability_text"] = extractBlock(text, m[1], stops, abilityBlockMaxChars)
	} else {
		out["ability_name"] = ""
		out["ability_text"] = ""
	}

	var attacks []string
	for _, mm := range reAttack.FindAllStringSubmatch(text, -1) {
		attacks = append(attacks, strings.TrimSpace(mm[1])+" :: "+strings.TrimSpace(mm[2]))
	}
	out["attacks"] = strings.Join(attacks, " | ")

	out["weakness"] = grabLineContaining(text, reWeakness)
	out["resistance"] = grabLineContaining(text, reResist)
	out["retreat"] = grabLineContaining(text, reRetreat)

	out["notes"] = tailNotes(text)

	return out, warnings
}

// MissingWarnings recomputes the critical-field warning list from current
// field values.
func MissingWarnings(fields FieldMap) []string {
	var warnings []string
	if fields["hp"] == "" {
		warnings = append(warnings, WarnHPMissing)
	}
	if fields["name"] == "" {
		warnings = append(warnings, WarnNameGuessFailed)
	}
	if fields["artist"] == "" {
		warnings = append(warnings, WarnArtistMissing)
	}
	if fields["card_number"] == "" {
		warnings = append(warnings, WarnCardNumberMissing)
	}
	return warnings
}

// firstLineBefore scans backward from the line matching marker for the
// nearest short alphabetic line; the card name sits just above the HP marker
// on most layouts. With no marker match, the first short line of the first
// four is used.
func firstLineBefore(text string, marker *regexp.Regexp) string {
	lines := nonEmptyLines(text)
	for i, ln := range lines {
		if marker.MatchString(ln) {
			for j := i - 1; j >= 0; j-- {
				if isShortAlphaLine(lines[j]) {
					return lines[j]
				}
			}
			break
		}
	}
	limit := 4
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, ln := range lines[:limit] {
		if isShortAlphaLine(ln) {
			return ln
		}
	}
	return ""
}

func isShortAlphaLine(line string) bool {
	return len(line) >= 1 && len(line) <= 30 && reLetter.MatchString(line)
}

// extractBlock returns the text from start up to the earliest stop-pattern
// match, capped at maxChars.
func extractBlock(text string, start int, stops []*regexp.Regexp, maxChars int) string {
	end := start + maxChars
	if end > len(text) {
		end = len(text)
	}
	chunk := text[start:end]

	cut := len(chunk)
	for _, pat := range stops {
		if loc := pat.FindStringIndex(chunk); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	return strings.TrimSpace(chunk[:cut])
}

func grabLineContaining(text string, pat *regexp.Regexp) string {
	loc := pat.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	lineStart := strings.LastIndex(text[:loc[0]], "\n") + 1
	lineEnd := strings.Index(text[loc[1]:], "\n")
	if lineEnd == -1 {
		lineEnd = len(text)
	} else {
		lineEnd += loc[1]
	}
	return strings.TrimSpace(text[lineStart:lineEnd])
}

// tailNotes keeps the last five trailing non-empty lines that do not look
// like card numbers; the card footer usually carries copyright and set text.
func tailNotes(text string) string {
	lines := nonEmptyLines(text)
	start := len(lines) - 8
	if start < 0 {
		start = 0
	}
	var tail []string
	for _, ln := range lines[start:] {
		if reCardNum.MatchString(ln) {
			continue
		}
		tail = append(tail, ln)
	}
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	return strings.Join(tail, " ")
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(ln); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
