package scripture

import (
	"context"
	"fmt"

	"github.com/EvanderIV/theology/internal/logging"
)

// Resolver looks citations up in a Dataset. It holds no per-call state; the
// dataset is passed on every call so one Resolver serves every translation.
type Resolver struct {
	books *BookResolver
}

// NewResolver returns a Resolver using books for name canonicalization.
// A nil books uses the default alias table.
func NewResolver(books *BookResolver) *Resolver {
	if books == nil {
		books = NewBookResolver(nil)
	}
	return &Resolver{books: books}
}

// Books returns the resolver's book name canonicalizer.
func (r *Resolver) Books() *BookResolver {
	return r.books
}

// Resolve parses raw and returns the verses it names in ds.
//
// A range that only partly exists succeeds with the verses present; a range
// with none present fails with VersesNotFound. A single verse that is absent
// fails with VerseNotFound.
func (r *Resolver) Resolve(raw string, ds *Dataset) (Verses, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return nil, err
	}
	return r.resolve(raw, ref, ds)
}

// ResolveReference resolves an already parsed reference.
func (r *Resolver) ResolveReference(ref *Reference, ds *Dataset) (Verses, error) {
	return r.resolve(ref.String(), ref, ds)
}

func (r *Resolver) resolve(raw string, ref *Reference, ds *Dataset) (Verses, error) {
	if ds == nil {
		return nil, newResolveError(DatasetUnavailable, raw, "no dataset loaded")
	}

	book := r.books.Canonicalize(ref.Book)

	chapters, ok := ds.Book(book)
	if !ok {
		return nil, newResolveError(BookNotFound, raw, fmt.Sprintf("book %q", book))
	}

	chapter, ok := chapters[ref.Chapter]
	if !ok {
		return nil, newResolveError(ChapterNotFound, raw, fmt.Sprintf("chapter %d of %q", ref.Chapter, book))
	}

	if !ref.IsRange() {
		text, ok := chapter[ref.VerseStart]
		if !ok {
			return nil, newResolveError(VerseNotFound, raw,
				fmt.Sprintf("verse %d in %q %d", ref.VerseStart, book, ref.Chapter))
		}
		return Verses{{Number: ref.VerseStart, Text: text}}, nil
	}

	// Stop at the chapter's last verse so "1-100000" stays cheap.
	last := min(ref.VerseEnd, lastVerse(chapter))
	var verses Verses
	for v := ref.VerseStart; v <= last; v++ {
		if text, ok := chapter[v]; ok {
			verses = append(verses, Verse{Number: v, Text: text})
		}
	}

	if len(verses) == 0 {
		return nil, newResolveError(VersesNotFound, raw,
			fmt.Sprintf("verses %d-%d in %q %d", ref.VerseStart, ref.VerseEnd, book, ref.Chapter))
	}
	return verses, nil
}

func lastVerse(ch Chapter) int {
	last := 0
	for v := range ch {
		last = max(last, v)
	}
	return last
}

// Passage is a resolved range plus the verse on either side of it.
type Passage struct {
	Reference *Reference `json:"-"`
	Main      Verses     `json:"main"`
	Prior     Verses     `json:"prior"`
	Next      Verses     `json:"next"`
}

// WithContext resolves ref and, concurrently, the single verses immediately
// before and after it in the same chapter. Only the main lookup can fail;
// a missing neighbour leaves Prior or Next empty.
func (r *Resolver) WithContext(ctx context.Context, ref *Reference, ds *Dataset) (*Passage, error) {
	return expandContext(ctx, r, ref, ds)
}

func (r *Resolver) contextVerse(ctx context.Context, ref *Reference, v int, ds *Dataset, side string) Verses {
	neighbour := ref.Single(v)
	verses, err := r.ResolveReference(neighbour, ds)
	if err != nil {
		logging.DebugContext(ctx, "context verse unavailable",
			"side", side,
			"reference", neighbour.String(),
			"kind", KindOf(err).String())
		return Verses{}
	}
	return verses
}
