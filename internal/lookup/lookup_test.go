package lookup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	cerrors "github.com/EvanderIV/theology/core/errors"
	"github.com/EvanderIV/theology/core/scripture"
	"github.com/EvanderIV/theology/internal/translations"
)

const kjvJSON = `{
	"__VERSION__": "King James Version",
	"John": {"3": {"15": "That whosoever believeth", "16": "For God so loved the world", "17": "For God sent not his Son"}},
	"Psalms": {"23": {"1": "The LORD is my shepherd"}}
}`

func newService(t *testing.T, opts Options) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "KJV.json"), []byte(kjvJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "BROKEN.json"), []byte(`{nope`), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := translations.NewRegistry(translations.Options{Dir: dir, Default: "KJV"})
	if err := reg.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	return New(reg, nil, opts), dir
}

func TestVerse(t *testing.T) {
	svc, _ := newService(t, Options{})
	ctx := context.Background()

	res, err := svc.Verse(ctx, "  psalm   23;1 ", "")
	if err != nil {
		t.Fatalf("Verse failed: %v", err)
	}
	if res.Translation != "KJV" || res.Reference != "psalm 23:1" {
		t.Errorf("result = %+v", res)
	}
	if res.Text.Text() != "1 The LORD is my shepherd" {
		t.Errorf("text = %q", res.Text.Text())
	}

	tests := []struct {
		reference string
		version   string
		kind      scripture.Kind
	}{
		{"John", "KJV", scripture.InvalidFormat},
		{"", "KJV", scripture.InvalidFormat},
		{"Jude 1:1", "KJV", scripture.BookNotFound},
		{"John 4:1", "KJV", scripture.ChapterNotFound},
		{"John 3:99", "KJV", scripture.VerseNotFound},
		{"John 3:40-50", "KJV", scripture.VersesNotFound},
		{"John 3:16", "BROKEN", scripture.DatasetUnavailable},
	}
	for _, tt := range tests {
		_, err := svc.Verse(ctx, tt.reference, tt.version)
		if got := scripture.KindOf(err); got != tt.kind {
			t.Errorf("Verse(%q, %q) kind = %v, want %v (err %v)", tt.reference, tt.version, got, tt.kind, err)
		}
	}

	_, err = svc.Verse(ctx, "John 3:16", "NIV")
	var nf *cerrors.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("unknown translation err = %v, want NotFoundError", err)
	}
	if scripture.KindOf(err) != 0 {
		t.Error("unknown translation is not a resolve failure")
	}
}

func TestContext(t *testing.T) {
	svc, _ := newService(t, Options{})

	res, err := svc.Context(context.Background(), "John 3:16", "KJV")
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if !reflect.DeepEqual(res.Prior.Numbers(), []int{15}) || !reflect.DeepEqual(res.Next.Numbers(), []int{17}) {
		t.Errorf("prior %v next %v", res.Prior.Numbers(), res.Next.Numbers())
	}

	if _, err := svc.Context(context.Background(), "John 3:99", "KJV"); scripture.KindOf(err) != scripture.VerseNotFound {
		t.Errorf("missing main verse err = %v", err)
	}
}

func TestCitations(t *testing.T) {
	svc, _ := newService(t, Options{})

	id, got, err := svc.Citations(context.Background(), "Read John 3:16 and Jude 1:3.", "")
	if err != nil {
		t.Fatalf("Citations failed: %v", err)
	}
	if id != "KJV" || len(got) != 2 {
		t.Fatalf("Citations = %q, %+v", id, got)
	}
	if got[0].Citation != "John 3:16" || got[0].Text.Text() != "16 For God so loved the world" || got[0].ErrorKind != "" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].ErrorKind != "BookNotFound" || got[1].Message != "Book not found." || got[1].Text != nil {
		t.Errorf("second = %+v", got[1])
	}

	if _, _, err := svc.Citations(context.Background(), "John 3:16", "NIV"); err == nil {
		t.Error("unknown translation should fail the call")
	}
}

func TestCacheHitAndReloadPurge(t *testing.T) {
	svc, dir := newService(t, Options{CacheTTL: time.Hour, CacheSize: 10})
	ctx := context.Background()

	first, err := svc.Verse(ctx, "John 3:16", "KJV")
	if err != nil {
		t.Fatal(err)
	}
	if svc.cache.Len() != 1 {
		t.Fatalf("cache len = %d, want 1", svc.cache.Len())
	}
	// Alias spellings share the cached entry.
	if _, err := svc.Verse(ctx, "JOHN 3:16", "KJV"); err != nil {
		t.Fatal(err)
	}
	if svc.cache.Len() != 1 {
		t.Errorf("cache len = %d after case variant", svc.cache.Len())
	}

	changed := `{"__VERSION__": "King James Version", "John": {"3": {"16": "changed text"}}}`
	if err := os.WriteFile(filepath.Join(dir, "KJV.json"), []byte(changed), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Registry().Reload(ctx, "KJV"); err != nil {
		t.Fatal(err)
	}
	if svc.cache.Len() != 0 {
		t.Errorf("reload should purge KJV entries, len = %d", svc.cache.Len())
	}

	second, err := svc.Verse(ctx, "John 3:16", "KJV")
	if err != nil {
		t.Fatal(err)
	}
	if second.Text.Text() == first.Text.Text() || second.Text.Text() != "16 changed text" {
		t.Errorf("served stale text %q", second.Text.Text())
	}
}

func TestTranslationOf(t *testing.T) {
	if got := translationOf("KJV|abc|john 3:16"); got != "KJV" {
		t.Errorf("translationOf = %q", got)
	}
	if got := translationOf("plain"); got != "plain" {
		t.Errorf("translationOf = %q", got)
	}
}
