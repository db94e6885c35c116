package scripture

import (
	"errors"
	"fmt"

	cerrors "github.com/EvanderIV/theology/core/errors"
)

// Kind classifies a resolution failure.
type Kind int

const (
	// InvalidFormat means the citation does not match "Book C:V[-V]".
	InvalidFormat Kind = iota + 1
	// DatasetUnavailable means no usable verse dataset was supplied.
	DatasetUnavailable
	// BookNotFound means the canonical book name is not in the dataset.
	BookNotFound
	// ChapterNotFound means the book has no such chapter.
	ChapterNotFound
	// VerseNotFound is a single-verse request for a verse the chapter lacks.
	VerseNotFound
	// VersesNotFound is a range request where no verse of the range exists.
	VersesNotFound
)

var kindNames = map[Kind]string{
	InvalidFormat:      "InvalidFormat",
	DatasetUnavailable: "DatasetUnavailable",
	BookNotFound:       "BookNotFound",
	ChapterNotFound:    "ChapterNotFound",
	VerseNotFound:      "VerseNotFound",
	VersesNotFound:     "VersesNotFound",
}

// user-facing messages, kept identical to the reader's original lookup service
var kindMessages = map[Kind]string{
	InvalidFormat:      "Invalid verse reference format.",
	DatasetUnavailable: "Bible dataset unavailable.",
	BookNotFound:       "Book not found.",
	ChapterNotFound:    "Chapter not found.",
	VerseNotFound:      "Verse not found.",
	VersesNotFound:     "Verses not found.",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Message returns the short notice shown to readers for this kind.
func (k Kind) Message() string {
	return kindMessages[k]
}

// IsNotFound reports whether k is one of the not-found kinds.
func (k Kind) IsNotFound() bool {
	switch k {
	case BookNotFound, ChapterNotFound, VerseNotFound, VersesNotFound:
		return true
	}
	return false
}

// ResolveError is the typed failure returned by ParseReference and Resolver.
type ResolveError struct {
	Kind      Kind
	Reference string // raw citation as given
	Detail    string // diagnostic detail, e.g. the canonical book name
	Err       error
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("%s: %q", e.Kind, e.Reference)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause and the coarse class from core/errors.
func (e *ResolveError) Unwrap() []error {
	var class error
	switch {
	case e.Kind == InvalidFormat:
		class = cerrors.ErrInvalidInput
	case e.Kind == DatasetUnavailable:
		class = cerrors.ErrUnavailable
	default:
		class = cerrors.ErrNotFound
	}
	if e.Err != nil {
		return []error{e.Err, class}
	}
	return []error{class}
}

func newResolveError(kind Kind, ref, detail string) *ResolveError {
	return &ResolveError{Kind: kind, Reference: ref, Detail: detail}
}

// KindOf returns the Kind carried by err, or 0 if err is not a ResolveError.
func KindOf(err error) Kind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}
