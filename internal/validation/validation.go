// Package validation checks user-supplied paths and verifies that dataset
// files contain what their names claim before a loader parses them.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

const (
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096

	sniffLen = 512
)

var (
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrContentMismatch  = errors.New("file content does not match its type")
)

// ValidatePath rejects empty, overlong, or control-character paths.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateFilename checks a single path element that will be created on disk.
func ValidateFilename(name string) error {
	if name == "" {
		return ErrInvalidFilename
	}
	if len(name) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	// Names like "-o" read as flags in shell pipelines.
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// FileType is the kind of content found at the start of a dataset file.
type FileType string

const (
	FileTypeSQLite  FileType = "sqlite"
	FileTypeXZ      FileType = "xz"
	FileTypeXML     FileType = "xml"
	FileTypeJSON    FileType = "json"
	FileTypeText    FileType = "text"
	FileTypeUnknown FileType = "unknown"
)

var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Sniff reads up to 512 bytes from r and reports what they look like.
// Text is split into JSON and XML by its first non-space byte.
func Sniff(r io.Reader) (FileType, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	return detect(buf[:n]), nil
}

func detect(buf []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.fileType
		}
	}
	if !isLikelyText(buf) {
		return FileTypeUnknown
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(buf, utf8BOM), " \t\r\n")
	switch {
	case len(trimmed) == 0:
		return FileTypeText
	case trimmed[0] == '{' || trimmed[0] == '[':
		return FileTypeJSON
	case trimmed[0] == '<':
		return FileTypeXML
	}
	return FileTypeText
}

// CheckContent sniffs the file at path and fails with ErrContentMismatch
// unless it holds want. Files that cannot be opened pass, so the loader
// reports the I/O error itself.
func CheckContent(path string, want FileType) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	got, err := Sniff(f)
	if err != nil {
		return err
	}
	if got == want {
		return nil
	}
	// An empty SQLite file is a fresh database with no tables yet; the
	// loader reports the missing table.
	if want == FileTypeSQLite && got == FileTypeText {
		return nil
	}
	return fmt.Errorf("%w: expected %s, found %s", ErrContentMismatch, want, got)
}

// isLikelyText reports whether buf is mostly printable with no NUL bytes.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b >= 0x20 && b <= 0x7e, b == '\t', b == '\n', b == '\r':
			printable++
		case b < 0x20:
			control++
		}
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
