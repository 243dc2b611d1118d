package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// mojibakeRepairs maps UTF-8 text misread as Latin-1 during OCR back to the
// intended characters. Tesseract reliably produces these artifacts for curly
// quotes, dashes and other typographic characters in scanned documents, so
// the table is fixed rather than heuristic. Longer patterns come first; the
// bare "â€" prefix is matched last as a partial right quote.
var mojibakeRepairs = []struct{ old, new string }{
	{"â€œ", "“"},       // left double quote
	{"â€", "”"},       // right double quote
	{"â€™", "'"},            // right single quote / apostrophe
	{"â€˜", "'"},            // left single quote
	{"â€”", "—"},       // em dash
	{"â€“", "–"},       // en dash
	{"â€¦", "…"},       // ellipsis
	{"â€¢", "•"},       // bullet point
	{"â„¢", "™"},       // trademark
	{"â‚¬", "€"},       // euro sign
	{"Â«", "«"},             // left guillemet
	{"Â»", "»"},             // right guillemet
	{"Â©", "©"},             // copyright
	{"Â®", "®"},             // registered trademark
	{"Â£", "£"},             // pound sign
	{"Â°", "°"},             // degree symbol
	{"Â½", "½"},             // one half
	{"Â¼", "¼"},             // one quarter
	{"Â¾", "¾"},             // three quarters
	{"â€", "”"},             // partial right quote
}

var (
	strayNBSPRe    = regexp.MustCompile("Â([A-Za-z])")
	multiSpaceRe   = regexp.MustCompile("  +")
	garbageMaxLen  = 50
	garbageMinRate = 0.3
)

// CleanRecognizedText repairs known multi-byte encoding corruption produced
// by OCR and strips short lines that are mostly non-alphanumeric, which are
// typically recognition noise from headers, footers and scan artifacts
// rather than real content.
func CleanRecognizedText(text string) string {
	if text == "" {
		return text
	}

	for _, r := range mojibakeRepairs {
		text = strings.ReplaceAll(text, r.old, r.new)
	}

	// Non-breaking space artifacts show up as a stray Â glued to letters.
	text = strayNBSPRe.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, " Â ", " ")
	text = strings.ReplaceAll(text, "Â ", " ")
	text = strings.ReplaceAll(text, " Â", " ")

	text = multiSpaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		if isGarbageLine(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// isGarbageLine reports whether a line is short and mostly non-alphanumeric:
// length under 50 runes with less than 30% letters, digits or spaces.
func isGarbageLine(line string) bool {
	stripped := strings.TrimSpace(line)
	if stripped == "" {
		return false
	}

	runes := []rune(stripped)
	if len(runes) >= garbageMaxLen {
		return false
	}

	alnum := 0
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			alnum++
		}
	}

	return float64(alnum)/float64(len(runes)) < garbageMinRate
}
