package scripture

import "regexp"

// citationPattern finds candidate citations in prose: a one-word book name
// with an optional numeral, then chapter:verse[-verse]. Candidates still
// go through ParseReference and the Resolver.
var citationPattern = regexp.MustCompile(`\b((?:1|2|3)?\s?[A-Za-z]+)\s(\d+):(\d+)(?:-(\d+))?`)

// Citation is one candidate reference found in text.
type Citation struct {
	Text  string `json:"text"`
	Start int    `json:"start"` // byte offset
	End   int    `json:"end"`
}

// FindCitations returns every candidate citation in text, in order of
// appearance.
func FindCitations(text string) []Citation {
	matches := citationPattern.FindAllStringIndex(text, -1)
	out := make([]Citation, 0, len(matches))
	for _, m := range matches {
		start := m[0]
		// \b also fires just before the space preceding a word, so the
		// optional \s can pull that space into the match.
		for start < m[1] && isSpace(text[start]) {
			start++
		}
		out = append(out, Citation{Text: text[start:m[1]], Start: start, End: m[1]})
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// UniqueCitations returns the distinct citation strings in text, first
// occurrence first.
func UniqueCitations(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range FindCitations(text) {
		if seen[c.Text] {
			continue
		}
		seen[c.Text] = true
		out = append(out, c.Text)
	}
	return out
}
