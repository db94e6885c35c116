package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name    string
		err     *NotFoundError
		wantMsg string
	}{
		{
			name:    "with ID",
			err:     &NotFoundError{Resource: "translation", ID: "KJV"},
			wantMsg: "translation not found: KJV",
		},
		{
			name:    "without ID",
			err:     &NotFoundError{Resource: "book"},
			wantMsg: "book not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrNotFound) {
				t.Errorf("errors.Is(%v, ErrNotFound) = false", tt.err)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlying := fmt.Errorf("registry closed")
		err := &NotFoundError{Resource: "translation", ID: "ESV", Err: underlying}
		if got := err.Unwrap(); got != underlying {
			t.Errorf("Unwrap() = %v, want %v", got, underlying)
		}
	})
}

func TestIOError(t *testing.T) {
	err := NewIO("open", "versions/KJV.json", fs.ErrNotExist)

	if got, want := err.Error(), "failed to open versions/KJV.json: file does not exist"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("IOError should match its cause")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("IOError should match ErrUnavailable")
	}

	noPath := &IOError{Operation: "query", Err: fmt.Errorf("conn reset")}
	if got, want := noPath.Error(), "failed to query: conn reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseError(t *testing.T) {
	err := NewParse("JSON", "KJV.json", "unexpected end of input")
	if got, want := err.Error(), "failed to parse JSON at KJV.json: unexpected end of input"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("ParseError should match ErrUnavailable")
	}

	cause := fmt.Errorf("bad token")
	wrapped := &ParseError{Format: "OSIS", Message: "bad token", Err: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("ParseError should match its cause")
	}
	if got, want := wrapped.Error(), "failed to parse OSIS: bad token"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("dataset format", ".docx")
	if got, want := err.Error(), "unsupported dataset format: .docx"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError should match ErrUnsupported")
	}
	if got := (&UnsupportedError{Feature: "xz level"}).Error(); got != "unsupported xz level" {
		t.Errorf("Error() = %q", got)
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	errs := []error{
		NewNotFound("translation", "NIV"),
		NewIO("read", "KJV.json", fs.ErrPermission),
		NewParse("JSON", "KJV.json", "bad"),
		NewUnsupported("reload", "translation has no source"),
	}
	sentinels := []error{ErrNotFound, ErrUnavailable, ErrUnavailable, ErrUnsupported}

	for i, err := range errs {
		for _, s := range []error{ErrNotFound, ErrInvalidInput, ErrUnavailable, ErrUnsupported} {
			if got, want := errors.Is(err, s), s == sentinels[i]; got != want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", err, s, got, want)
			}
		}
	}

	var nf *NotFoundError
	if !errors.As(fmt.Errorf("lookup: %w", errs[0]), &nf) || nf.Resource != "translation" {
		t.Errorf("errors.As through a wrap = %+v", nf)
	}
}
