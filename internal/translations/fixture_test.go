package translations

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/EvanderIV/theology/core/scripture"
)

const kjvJSON = `{
	"__VERSION__": "King James Version",
	"__NOTES__": {"source": "public domain"},
	"John": {
		"3": {"16": "For God so loved the world", "17": "For God sent not his Son"}
	},
	"Psalms": {
		"23": {"1": "The LORD is my shepherd; I shall not want."}
	}
}`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func sampleDataset(id, name string) *scripture.Dataset {
	return scripture.NewDataset(id, name, map[string]scripture.Book{
		"John":          {3: {16: "For God so loved the world", 17: "For God sent not his Son"}},
		"1 Corinthians": {13: {4: "Charity suffereth long"}},
	})
}

// flatten lists a dataset's verses as "book c:v text" in order.
func flatten(t *testing.T, ds *scripture.Dataset) []string {
	t.Helper()
	var out []string
	err := ds.Each(func(book string, ch, v int, text string) error {
		out = append(out, fmt.Sprintf("%s %d:%d %s", book, ch, v, text))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}
