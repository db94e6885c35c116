// Package lookup answers citation requests against registered translations.
// It is the one place where the registry, the resolver and the result cache
// meet; the HTTP API, the WebSocket endpoint and the CLI all go through it.
package lookup

import (
	"context"
	"errors"
	"strconv"
	"time"

	cerrors "github.com/EvanderIV/theology/core/errors"
	"github.com/EvanderIV/theology/core/scripture"
	"github.com/EvanderIV/theology/internal/cache"
	"github.com/EvanderIV/theology/internal/logging"
	"github.com/EvanderIV/theology/internal/translations"
)

// Options tunes the result cache. A zero TTL disables caching.
type Options struct {
	CacheTTL  time.Duration
	CacheSize int
}

// Service resolves citations for callers.
type Service struct {
	registry *translations.Registry
	resolver *scripture.Resolver
	cache    *cache.TTLCache[string, scripture.Verses]
}

// Result is a resolved citation.
type Result struct {
	Reference   string           `json:"reference"`
	Translation string           `json:"translation"`
	Text        scripture.Verses `json:"text"`
}

// ContextResult is a resolved citation with its neighbouring verses.
type ContextResult struct {
	Reference   string           `json:"reference"`
	Translation string           `json:"translation"`
	Main        scripture.Verses `json:"main"`
	Prior       scripture.Verses `json:"prior"`
	Next        scripture.Verses `json:"next"`
}

// New builds a Service. Reloads in registry purge the affected cache entries.
func New(registry *translations.Registry, resolver *scripture.Resolver, opts Options) *Service {
	if resolver == nil {
		resolver = scripture.NewResolver(nil)
	}
	s := &Service{registry: registry, resolver: resolver}
	if opts.CacheTTL > 0 {
		s.cache = cache.New[string, scripture.Verses](opts.CacheTTL, opts.CacheSize)
		registry.OnChange(func(c translations.Change) {
			n := s.cache.DeleteFunc(func(key string) bool { return translationOf(key) == c.ID })
			logging.Debug("lookup cache purged", "translation", c.ID, "entries", n)
		})
	}
	return s
}

// Registry returns the translation registry.
func (s *Service) Registry() *translations.Registry { return s.registry }

// Resolver returns the citation resolver.
func (s *Service) Resolver() *scripture.Resolver { return s.resolver }

// Verse resolves reference in the named translation ("" for the default).
//
// Errors: *errors.NotFoundError when version is not registered,
// *scripture.ResolveError for everything else (an unloadable translation is
// DatasetUnavailable).
func (s *Service) Verse(ctx context.Context, reference, version string) (*Result, error) {
	ds, err := s.dataset(ctx, reference, version)
	if err != nil {
		return nil, err
	}
	ref, err := scripture.ParseReference(reference)
	if err != nil {
		return nil, s.failed(ctx, reference, ds.ID, err)
	}

	key := s.cacheKey(ds, ref)
	if s.cache != nil {
		if verses, ok := s.cache.Get(key); ok {
			return &Result{Reference: ref.String(), Translation: ds.ID, Text: verses}, nil
		}
	}

	verses, err := s.resolver.ResolveReference(ref, ds)
	if err != nil {
		return nil, s.failed(ctx, reference, ds.ID, err)
	}
	if s.cache != nil {
		s.cache.Set(key, verses)
	}
	return &Result{Reference: ref.String(), Translation: ds.ID, Text: verses}, nil
}

// Context resolves reference plus the verse on each side of it.
func (s *Service) Context(ctx context.Context, reference, version string) (*ContextResult, error) {
	ds, err := s.dataset(ctx, reference, version)
	if err != nil {
		return nil, err
	}
	ref, err := scripture.ParseReference(reference)
	if err != nil {
		return nil, s.failed(ctx, reference, ds.ID, err)
	}

	p, err := s.resolver.WithContext(ctx, ref, ds)
	if err != nil {
		return nil, s.failed(ctx, reference, ds.ID, err)
	}
	return &ContextResult{
		Reference:   ref.String(),
		Translation: ds.ID,
		Main:        p.Main,
		Prior:       p.Prior,
		Next:        p.Next,
	}, nil
}

// CitationResult is one citation found in prose. Text is set when it
// resolved; ErrorKind and Message when it did not.
type CitationResult struct {
	Citation  string           `json:"citation"`
	Start     int              `json:"start"`
	End       int              `json:"end"`
	Text      scripture.Verses `json:"text,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// Citations finds every citation in text and resolves each one. Individual
// misses are reported per citation; only an unknown or unloadable
// translation fails the whole call.
func (s *Service) Citations(ctx context.Context, text, version string) (string, []CitationResult, error) {
	ds, err := s.dataset(ctx, "", version)
	if err != nil {
		return "", nil, err
	}

	found := scripture.FindCitations(text)
	out := make([]CitationResult, 0, len(found))
	for _, c := range found {
		cr := CitationResult{Citation: c.Text, Start: c.Start, End: c.End}
		res, err := s.Verse(ctx, c.Text, ds.ID)
		if err != nil {
			kind := scripture.KindOf(err)
			cr.ErrorKind = kind.String()
			cr.Message = kind.Message()
		} else {
			cr.Text = res.Text
		}
		out = append(out, cr)
	}
	return ds.ID, out, nil
}

func (s *Service) dataset(ctx context.Context, reference, version string) (*scripture.Dataset, error) {
	ds, err := s.registry.Get(ctx, version)
	if err == nil {
		return ds, nil
	}
	var nf *cerrors.NotFoundError
	if errors.As(err, &nf) {
		return nil, err
	}
	return nil, &scripture.ResolveError{
		Kind:      scripture.DatasetUnavailable,
		Reference: reference,
		Detail:    "translation " + version,
		Err:       err,
	}
}

func (s *Service) failed(ctx context.Context, reference, translation string, err error) error {
	logging.LookupFailed(ctx, reference, translation, scripture.KindOf(err).String())
	return err
}

// cacheKey is "translation|fingerprint|book c:v-v" on the canonical book,
// so alias spellings share an entry and reloaded content never matches.
func (s *Service) cacheKey(ds *scripture.Dataset, ref *scripture.Reference) string {
	key := ds.ID + "|" + ds.Fingerprint + "|" + s.resolver.Books().Canonicalize(ref.Book) + " " +
		strconv.Itoa(ref.Chapter) + ":" + strconv.Itoa(ref.VerseStart)
	if ref.IsRange() {
		key += "-" + strconv.Itoa(ref.VerseEnd)
	}
	return key
}

func translationOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i]
		}
	}
	return key
}
