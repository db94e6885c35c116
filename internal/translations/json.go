package translations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	cerrors "github.com/EvanderIV/theology/core/errors"
	"github.com/EvanderIV/theology/core/scripture"
)

// versionKey holds a JSON dataset's display name. Other keys starting with
// "__" are metadata and never books.
const versionKey = "__VERSION__"

// LoadJSON reads a dataset shaped {"Book": {"C": {"V": "text"}}}.
func LoadJSON(path, id string) (*scripture.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewIO("read", path, err)
	}
	return decodeJSON(data, path, id)
}

// LoadJSONXZ reads an xz-compressed JSON dataset. The fingerprint covers
// the compressed bytes.
func LoadJSONXZ(path, id string) (*scripture.Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewIO("read", path, err)
	}
	xzr, err := xz.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &cerrors.ParseError{Format: "xz", Path: path, Message: "bad xz header", Err: err}
	}
	data, err := io.ReadAll(xzr)
	if err != nil {
		return nil, &cerrors.ParseError{Format: "xz", Path: path, Message: "corrupt stream", Err: err}
	}
	ds, err := decodeJSON(data, path, id)
	if err != nil {
		return nil, err
	}
	ds.Fingerprint = Fingerprint(raw)
	return ds, nil
}

// ReadJSONName returns a JSON dataset's __VERSION__ value without building
// the dataset. Used by directory scans.
func ReadJSONName(r io.Reader) (string, error) {
	dec := json.NewDecoder(r)
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return "", fmt.Errorf("dataset is not a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		key, _ := tok.(string)
		if key == versionKey {
			var name string
			if err := dec.Decode(&name); err != nil {
				return "", err
			}
			return name, nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return "", err
		}
	}
	return "", nil
}

func decodeJSON(data []byte, path, id string) (*scripture.Dataset, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &cerrors.ParseError{Format: "JSON", Path: path, Message: "not a JSON object", Err: err}
	}

	b := scripture.NewBuilder(id, id)
	b.SetFingerprint(Fingerprint(data))

	if raw, ok := top[versionKey]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil && name != "" {
			b.SetName(name)
		}
	}

	for book, raw := range top {
		if strings.HasPrefix(book, "__") {
			continue
		}
		var chapters map[string]map[string]string
		if err := json.Unmarshal(raw, &chapters); err != nil {
			return nil, &cerrors.ParseError{Format: "JSON", Path: path,
				Message: fmt.Sprintf("book %q is not {chapter: {verse: text}}", book), Err: err}
		}
		for chKey, verses := range chapters {
			ch, err := strconv.Atoi(chKey)
			if err != nil || ch > scripture.MaxNumber {
				return nil, cerrors.NewParse("JSON", path, fmt.Sprintf("%s: chapter key %q", book, chKey))
			}
			for vKey, text := range verses {
				v, err := strconv.Atoi(vKey)
				if err != nil || v > scripture.MaxNumber {
					return nil, cerrors.NewParse("JSON", path, fmt.Sprintf("%s %d: verse key %q", book, ch, vKey))
				}
				b.Add(book, ch, v, text)
			}
		}
	}

	if b.Len() == 0 {
		return nil, cerrors.NewParse("JSON", path, "no books")
	}
	return b.Build(), nil
}

// WriteJSON writes ds in the layout LoadJSON reads, with the display name
// under __VERSION__. Book keys are the dataset's canonical names.
func WriteJSON(w io.Writer, ds *scripture.Dataset) error {
	out := map[string]any{versionKey: ds.Name}
	err := ds.Each(func(book string, chapter, verse int, text string) error {
		chapters, _ := out[book].(map[string]map[string]string)
		if chapters == nil {
			chapters = make(map[string]map[string]string)
			out[book] = chapters
		}
		ck := strconv.Itoa(chapter)
		if chapters[ck] == nil {
			chapters[ck] = make(map[string]string)
		}
		chapters[ck][strconv.Itoa(verse)] = text
		return nil
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
