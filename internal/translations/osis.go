package translations

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	cerrors "github.com/EvanderIV/theology/core/errors"
	"github.com/EvanderIV/theology/core/scripture"
	"github.com/EvanderIV/theology/core/xml"
)

var (
	osisVerses = xml.MustCompile("//*[local-name()='verse'][@osisID]")
	osisTitle  = xml.MustCompile("//*[local-name()='work']/*[local-name()='title']")
)

// LoadOSIS reads an OSIS document whose verses are containers:
// <verse osisID="John.3.16">text</verse>. Milestone verses (sID/eID pairs)
// carry no text and are skipped.
func LoadOSIS(path, id string) (*scripture.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewIO("read", path, err)
	}

	doc, err := xml.Parse(data)
	if err != nil {
		return nil, &cerrors.ParseError{Format: "OSIS", Path: path, Message: "malformed XML", Err: err}
	}

	b := scripture.NewBuilder(id, id)
	b.SetFingerprint(Fingerprint(data))

	if title := doc.First(osisTitle); title != nil && title.Text() != "" {
		b.SetName(title.Text())
	}

	err = doc.Each(osisVerses, func(v *xml.Node) error {
		if v.Attr("sID") != "" || v.Attr("eID") != "" {
			return nil
		}
		text := v.Text()
		// osisID may list several verses joined into one element.
		for _, osisID := range strings.Fields(v.Attr("osisID")) {
			book, ch, verse, err := splitOSISID(osisID)
			if err != nil {
				return err
			}
			b.Add(book, ch, verse, text)
		}
		return nil
	})
	if err != nil {
		return nil, cerrors.NewParse("OSIS", path, err.Error())
	}

	if b.Len() == 0 {
		return nil, cerrors.NewParse("OSIS", path, "no container verses")
	}
	return b.Build(), nil
}

// splitOSISID turns "1Cor.13.4" into ("1 Corinthians", 13, 4).
func splitOSISID(osisID string) (string, int, int, error) {
	parts := strings.Split(osisID, ".")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("osisID %q is not Book.Chapter.Verse", osisID)
	}
	book, ok := scripture.OSISBookName(parts[0])
	if !ok {
		return "", 0, 0, fmt.Errorf("osisID %q: unknown book %q", osisID, parts[0])
	}
	ch, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("osisID %q: chapter: %w", osisID, err)
	}
	verse, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("osisID %q: verse: %w", osisID, err)
	}
	if ch > scripture.MaxNumber || verse > scripture.MaxNumber {
		return "", 0, 0, fmt.Errorf("osisID %q: number out of range", osisID)
	}
	return book, ch, verse, nil
}
