package metrics

import (
	"strings"
	"unicode/utf8"
)

// Features holds size features of a text, safe to log in place of the text itself.
type Features struct {
	Bytes int `json:"bytes"`
	Runes int `json:"runes"`
	Words int `json:"words"`
	Lines int `json:"lines"`
}

// CountFeatures computes byte, rune, word, and line counts for s.
func CountFeatures(s string) Features {
	return Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
		Lines: countLines(s),
	}
}

// Map renders the features as telemetry fields.
func (f Features) Map() map[string]any {
	return map[string]any{"bytes": f.Bytes, "runes": f.Runes, "words": f.Words, "lines": f.Lines}
}

// countLines returns 0 for empty strings; otherwise 1 plus the number of '\n' runes.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}
