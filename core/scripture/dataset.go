package scripture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Chapter maps verse number to verse text.
type Chapter map[int]string

// Book maps chapter number to its verses.
type Book map[int]Chapter

// Dataset is one translation's verse text keyed by lower-case canonical book
// name. A Dataset must not be modified after it is built; it is then safe
// for any number of concurrent readers.
type Dataset struct {
	// ID is the translation identifier (e.g., "KJV").
	ID string
	// Name is the display name (e.g., "King James Version").
	Name string
	// Fingerprint identifies the dataset content. Loaders set it to a
	// BLAKE3 digest of the source so caches can tell reloads apart.
	Fingerprint string

	books map[string]Book
}

// NewDataset builds a Dataset from books. Book names are lower-cased; books
// whose names fold together are merged.
func NewDataset(id, name string, books map[string]Book) *Dataset {
	b := NewBuilder(id, name)
	for bookName, chapters := range books {
		for ch, verses := range chapters {
			for v, text := range verses {
				b.Add(bookName, ch, v, text)
			}
		}
	}
	return b.Build()
}

// Book returns the chapters of the book with the given canonical name.
func (d *Dataset) Book(canonical string) (Book, bool) {
	if d == nil {
		return nil, false
	}
	book, ok := d.books[canonical]
	return book, ok
}

// Chapter returns one chapter of a book.
func (d *Dataset) Chapter(canonical string, chapter int) (Chapter, bool) {
	book, ok := d.Book(canonical)
	if !ok {
		return nil, false
	}
	ch, ok := book[chapter]
	return ch, ok
}

// Books returns the canonical book names in sorted order.
func (d *Dataset) Books() []string {
	names := make([]string, 0, len(d.books))
	for name := range d.books {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VerseCount returns the total number of verses.
func (d *Dataset) VerseCount() int {
	n := 0
	for _, book := range d.books {
		for _, ch := range book {
			n += len(ch)
		}
	}
	return n
}

// Each calls fn for every verse, ordered by book name, chapter and verse.
func (d *Dataset) Each(fn func(book string, chapter, verse int, text string) error) error {
	for _, name := range d.Books() {
		book := d.books[name]
		for _, ch := range sortedKeys(book) {
			verses := book[ch]
			for _, v := range sortedKeys(verses) {
				if err := fn(name, ch, v, verses[v]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Builder accumulates verses for a Dataset. Loaders that read row by row
// (SQL, OSIS) use it instead of building nested maps by hand.
type Builder struct {
	id, name    string
	fingerprint string
	books       map[string]Book
}

// NewBuilder starts an empty dataset.
func NewBuilder(id, name string) *Builder {
	return &Builder{id: id, name: name, books: make(map[string]Book)}
}

// SetName overrides the display name.
func (b *Builder) SetName(name string) { b.name = name }

// SetFingerprint records the content fingerprint.
func (b *Builder) SetFingerprint(fp string) { b.fingerprint = fp }

// Add records one verse. A repeated (book, chapter, verse) replaces the text.
func (b *Builder) Add(book string, chapter, verse int, text string) {
	key := foldName(book)
	bk, ok := b.books[key]
	if !ok {
		bk = make(Book)
		b.books[key] = bk
	}
	ch, ok := bk[chapter]
	if !ok {
		ch = make(Chapter)
		bk[chapter] = ch
	}
	ch[verse] = text
}

// Len returns the number of books added so far.
func (b *Builder) Len() int { return len(b.books) }

// Build returns the finished Dataset. The builder must not be used afterwards.
func (b *Builder) Build() *Dataset {
	ds := &Dataset{ID: b.id, Name: b.name, Fingerprint: b.fingerprint, books: b.books}
	b.books = nil
	return ds
}

// Verse is one resolved verse.
type Verse struct {
	Number int    `json:"verse"`
	Text   string `json:"text"`
}

// Verses is an ordered, ascending run of resolved verses. It encodes to JSON
// as an object keyed by verse number, e.g. {"16":"For God...","17":"..."},
// with keys kept in numeric order.
type Verses []Verse

// MarshalJSON implements json.Marshaler.
func (vs Verses) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range vs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(v.Number))
		buf.WriteString(`":`)
		text, err := json.Marshal(v.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(text)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (vs *Verses) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Verses, 0, len(raw))
	for k, text := range raw {
		n, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("verse key %q: %w", k, err)
		}
		out = append(out, Verse{Number: n, Text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	*vs = out
	return nil
}

// Numbers returns the verse numbers in order.
func (vs Verses) Numbers() []int {
	nums := make([]int, len(vs))
	for i, v := range vs {
		nums[i] = v.Number
	}
	return nums
}

// Text joins the verses as "16 For God... 17 For God sent...".
func (vs Verses) Text() string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v.Number) + " " + v.Text
	}
	return strings.Join(parts, " ")
}
