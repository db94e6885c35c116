package scripture

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Reference is a parsed citation. Book is kept exactly as written;
// canonicalization happens at resolve time.
type Reference struct {
	Book       string `json:"book"`
	Chapter    int    `json:"chapter"`
	VerseStart int    `json:"verse_start"`
	VerseEnd   int    `json:"verse_end"`
}

// citationGrammar is the participle grammar for "Book C:V[-V]".
// Examples: "John 3:16", "1 Corinthians 13:4-7", "Song of Solomon 2:1"
//
//nolint:govet // participle grammar tags are not standard struct tags
type citationGrammar struct {
	Book    string  `@Book`
	Gap     string  `@Space`
	Chapter string  `@Number ":"`
	Verse   string  `@Number`
	VerseTo *string `( "-" @Number )?`
}

// citationLexer tokenizes a normalized citation. Inputs reach it with
// whitespace collapsed to single spaces, so Space is one literal blank.
var citationLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Optional leading numeral ("1 John", "2Kings"), then words of letters
	{Name: "Book", Pattern: `(?:[1-9] ?)?\p{L}+(?: \p{L}+)*`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Space", Pattern: ` `},
})

var citationParser = participle.MustBuild[citationGrammar](
	participle.Lexer(citationLexer),
)

// NormalizeCitation trims s, collapses whitespace runs to one space and
// treats ';' as the chapter/verse separator ':'.
func NormalizeCitation(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, ";", ":")
}

// ParseReference parses a citation of the form "Book Chapter:Verse[-Verse]".
// Supported formats:
//   - "John 3:16" (single verse)
//   - "John 3:16-18" (verse range)
//   - "1 Corinthians 13:4" (numbered book)
//   - "Psalm 23;1" (';' accepted as separator)
//
// It does not check that the book, chapter or verses exist. Failures are a
// *ResolveError of kind InvalidFormat.
func ParseReference(raw string) (*Reference, error) {
	normalized := NormalizeCitation(raw)
	if normalized == "" {
		return nil, newResolveError(InvalidFormat, raw, "empty reference")
	}

	parsed, err := citationParser.ParseString("", normalized)
	if err != nil {
		return nil, &ResolveError{Kind: InvalidFormat, Reference: raw, Err: err}
	}

	ref := &Reference{Book: parsed.Book}
	if ref.Chapter, err = parseNumber(parsed.Chapter); err != nil {
		return nil, &ResolveError{Kind: InvalidFormat, Reference: raw, Detail: "chapter", Err: err}
	}
	if ref.VerseStart, err = parseNumber(parsed.Verse); err != nil {
		return nil, &ResolveError{Kind: InvalidFormat, Reference: raw, Detail: "verse", Err: err}
	}
	ref.VerseEnd = ref.VerseStart

	if parsed.VerseTo != nil {
		if ref.VerseEnd, err = parseNumber(*parsed.VerseTo); err != nil {
			return nil, &ResolveError{Kind: InvalidFormat, Reference: raw, Detail: "verse range", Err: err}
		}
		if ref.VerseEnd < ref.VerseStart {
			return nil, newResolveError(InvalidFormat, raw,
				fmt.Sprintf("range end %d precedes start %d", ref.VerseEnd, ref.VerseStart))
		}
	}

	return ref, nil
}

// MaxNumber is the largest chapter or verse number a Reference holds.
// Longer literals clamp to it, so they resolve as not found rather than
// failing to parse.
const MaxNumber = math.MaxInt32

func parseNumber(s string) (int, error) {
	n, err := strconv.ParseUint(s, 10, 31)
	if errors.Is(err, strconv.ErrRange) {
		return MaxNumber, nil
	}
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// String rebuilds the citation as "Book C:V" or "Book C:V1-V2".
func (r *Reference) String() string {
	var sb strings.Builder
	sb.WriteString(r.Book)
	sb.WriteString(" ")
	sb.WriteString(strconv.Itoa(r.Chapter))
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(r.VerseStart))

	if r.IsRange() {
		sb.WriteString("-")
		sb.WriteString(strconv.Itoa(r.VerseEnd))
	}

	return sb.String()
}

// IsRange returns true if this reference spans multiple verses.
func (r *Reference) IsRange() bool {
	return r.VerseEnd > r.VerseStart
}

// Single returns a one-verse reference to verse v in the same book and chapter.
func (r *Reference) Single(v int) *Reference {
	return &Reference{Book: r.Book, Chapter: r.Chapter, VerseStart: v, VerseEnd: v}
}
