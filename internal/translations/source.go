// Package translations discovers, loads and caches Bible translation
// datasets. A translation is identified by the base name of its source file
// ("versions/KJV.json" is "KJV") or by its row in a PostgreSQL catalog.
package translations

import (
	"path/filepath"
	"strings"

	"github.com/EvanderIV/theology/internal/validation"
)

// Format is the on-disk or remote encoding of a translation.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatJSONXZ   Format = "json.xz"
	FormatOSIS     Format = "osis"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgres"
	// FormatMemory marks a dataset registered in-process with no source.
	FormatMemory Format = "memory"
)

// contentTypes is what a file of each format must start with.
var contentTypes = map[Format]validation.FileType{
	FormatJSON:   validation.FileTypeJSON,
	FormatJSONXZ: validation.FileTypeXZ,
	FormatOSIS:   validation.FileTypeXML,
	FormatSQLite: validation.FileTypeSQLite,
}

// Source locates one translation.
type Source struct {
	ID     string
	Format Format
	// Path is a file path, or for FormatPostgres the translation's catalog id.
	Path string
}

// DetectFormat maps a file name to its Format and translation ID.
// ok is false for files that are not translation datasets.
func DetectFormat(name string) (id string, format Format, ok bool) {
	base := filepath.Base(name)
	lower := strings.ToLower(base)

	switch {
	case strings.HasSuffix(lower, ".json.xz"):
		return base[:len(base)-len(".json.xz")], FormatJSONXZ, true
	case strings.HasSuffix(lower, ".json"):
		return base[:len(base)-len(".json")], FormatJSON, true
	case strings.HasSuffix(lower, ".osis.xml"):
		return base[:len(base)-len(".osis.xml")], FormatOSIS, true
	case strings.HasSuffix(lower, ".xml"):
		return base[:len(base)-len(".xml")], FormatOSIS, true
	case strings.HasSuffix(lower, ".sqlite"):
		return base[:len(base)-len(".sqlite")], FormatSQLite, true
	case strings.HasSuffix(lower, ".db"):
		return base[:len(base)-len(".db")], FormatSQLite, true
	}
	return "", "", false
}
