package translations

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	cerrors "github.com/EvanderIV/theology/core/errors"
	"github.com/EvanderIV/theology/core/scripture"
	"github.com/EvanderIV/theology/internal/logging"
	"github.com/EvanderIV/theology/internal/server"
	"github.com/EvanderIV/theology/internal/validation"
)

// Info describes a registered translation.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Format      Format `json:"format"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Loaded      bool   `json:"loaded"`
}

// Label is the picker text, e.g. "King James Version (KJV)".
func (i Info) Label() string {
	if i.Name == "" || i.Name == i.ID {
		return i.ID
	}
	return i.Name + " (" + i.ID + ")"
}

// Change is sent to OnChange listeners after a reload.
type Change struct {
	ID             string `json:"translation"`
	OldFingerprint string `json:"old_fingerprint,omitempty"`
	Fingerprint    string `json:"fingerprint"`
}

// Options configures a Registry.
type Options struct {
	// Dir is scanned for dataset files. May be empty when only Postgres is used.
	Dir string
	// Default is the translation used when a request names none.
	Default string
	// Postgres, if set, contributes the translations in its catalog.
	Postgres *PostgresStore
}

type entry struct {
	src  Source
	name string

	loadMu sync.Mutex
	ds     atomic.Pointer[scripture.Dataset]
}

// Registry maps translation IDs to lazily loaded datasets. Each dataset is
// loaded at most once until it is reloaded.
type Registry struct {
	dir       string
	defaultID string
	pg        *PostgresStore

	mu        sync.RWMutex
	entries   map[string]*entry
	listeners []func(Change)
}

// NewRegistry returns an empty registry; call Scan to discover translations.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		dir:       opts.Dir,
		defaultID: opts.Default,
		pg:        opts.Postgres,
		entries:   make(map[string]*entry),
	}
}

// Register adds or replaces a translation source.
func (r *Registry) Register(src Source, name string) {
	if name == "" {
		name = src.ID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[src.ID] = &entry{src: src, name: name}
}

// Add registers an already built dataset, e.g. for tests or embedding.
// Such a translation cannot be reloaded.
func (r *Registry) Add(ds *scripture.Dataset) {
	e := &entry{src: Source{ID: ds.ID, Format: FormatMemory}, name: ds.Name}
	e.ds.Store(ds)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[ds.ID] = e
}

// Scan discovers translations in the directory and the Postgres catalog.
// Entries whose source is unchanged keep their loaded dataset. When two
// files share an ID the first in name order wins.
func (r *Registry) Scan(ctx context.Context) error {
	found := make(map[string]*entry)

	if r.dir != "" {
		files, err := os.ReadDir(r.dir)
		if err != nil {
			return cerrors.NewIO("scan", r.dir, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			id, format, ok := DetectFormat(f.Name())
			if !ok {
				continue
			}
			path := filepath.Join(r.dir, f.Name())
			if !server.ValidateIdentifier(id) {
				logging.Warn("invalid translation id", "translation", id, "ignored", path)
				continue
			}
			if prev, dup := found[id]; dup {
				logging.Warn("duplicate translation id", "translation", id,
					"kept", prev.src.Path, "ignored", path)
				continue
			}
			found[id] = &entry{src: Source{ID: id, Format: format, Path: path}, name: scanName(path, id, format)}
		}
	}

	if r.pg != nil {
		catalog, err := r.pg.Catalog(ctx)
		if err != nil {
			return err
		}
		for id, name := range catalog {
			if !server.ValidateIdentifier(id) {
				logging.Warn("invalid translation id", "translation", id, "ignored", "postgres")
				continue
			}
			if _, dup := found[id]; dup {
				logging.Warn("duplicate translation id", "translation", id, "ignored", "postgres")
				continue
			}
			found[id] = &entry{src: Source{ID: id, Format: FormatPostgres, Path: id}, name: name}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range found {
		if old, ok := r.entries[id]; ok && old.src == e.src {
			found[id] = old
		}
	}
	r.entries = found
	return nil
}

// scanName reads a JSON dataset's display name cheaply; other formats are
// named when loaded.
func scanName(path, id string, format Format) string {
	if format != FormatJSON {
		return id
	}
	f, err := os.Open(path)
	if err != nil {
		return id
	}
	defer f.Close()
	if name, err := ReadJSONName(f); err == nil && name != "" {
		return name
	}
	return id
}

// Default returns the translation used when a request names none: the
// configured default if registered, else KJV, else the first ID in order.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.entries[r.defaultID]; ok {
		return r.defaultID
	}
	if _, ok := r.entries["KJV"]; ok {
		return "KJV"
	}
	ids := r.idsLocked()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// List returns every registered translation sorted by ID.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.entries))
	for _, id := range r.idsLocked() {
		out = append(out, r.entries[id].info())
	}
	return out
}

func (r *Registry) idsLocked() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *entry) info() Info {
	info := Info{ID: e.src.ID, Name: e.name, Format: e.src.Format}
	if ds := e.ds.Load(); ds != nil {
		info.Name = ds.Name
		info.Fingerprint = ds.Fingerprint
		info.Loaded = true
	}
	return info
}

func (r *Registry) lookup(id string) (*entry, error) {
	if id == "" {
		id = r.Default()
	}
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, cerrors.NewNotFound("translation", id)
	}
	return e, nil
}

// Get returns the dataset for id, loading it on first use. An empty id
// selects the default translation. Unknown IDs fail with a
// *errors.NotFoundError; unreadable sources with *errors.IOError or
// *errors.ParseError.
func (r *Registry) Get(ctx context.Context, id string) (*scripture.Dataset, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if ds := e.ds.Load(); ds != nil {
		return ds, nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	if ds := e.ds.Load(); ds != nil {
		return ds, nil
	}

	ds, err := r.load(ctx, e.src)
	if err != nil {
		return nil, err
	}
	e.ds.Store(ds)
	return ds, nil
}

// Reload re-reads id from its source and notifies listeners. The previous
// dataset keeps serving if the reload fails.
func (r *Registry) Reload(ctx context.Context, id string) (Info, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Info{}, err
	}

	e.loadMu.Lock()
	var oldFP string
	if old := e.ds.Load(); old != nil {
		oldFP = old.Fingerprint
	}
	ds, err := r.load(ctx, e.src)
	if err == nil {
		e.ds.Store(ds)
	}
	e.loadMu.Unlock()
	if err != nil {
		return Info{}, err
	}

	change := Change{ID: e.src.ID, OldFingerprint: oldFP, Fingerprint: ds.Fingerprint}
	r.mu.RLock()
	listeners := append([]func(Change){}, r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(change)
	}
	return e.info(), nil
}

// OnChange registers fn to run after every successful Reload.
func (r *Registry) OnChange(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// LoadAll loads every registered translation with at most limit loads in
// flight. Failures are logged and the first is returned.
func (r *Registry) LoadAll(ctx context.Context, limit int) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, info := range r.List() {
		id := info.ID
		g.Go(func() error {
			_, err := r.Get(ctx, id)
			return err
		})
	}
	return g.Wait()
}

// Load reads a single source outside any registry.
func Load(ctx context.Context, src Source) (*scripture.Dataset, error) {
	if want, ok := contentTypes[src.Format]; ok {
		if err := validation.CheckContent(src.Path, want); err != nil {
			return nil, &cerrors.ParseError{Format: string(src.Format), Path: src.Path, Message: "unexpected content", Err: err}
		}
	}
	switch src.Format {
	case FormatJSON:
		return LoadJSON(src.Path, src.ID)
	case FormatJSONXZ:
		return LoadJSONXZ(src.Path, src.ID)
	case FormatOSIS:
		return LoadOSIS(src.Path, src.ID)
	case FormatSQLite:
		return LoadSQLite(ctx, src.Path, src.ID)
	}
	return nil, cerrors.NewUnsupported("translation format", string(src.Format))
}

func (r *Registry) load(ctx context.Context, src Source) (*scripture.Dataset, error) {
	start := time.Now()

	var (
		ds  *scripture.Dataset
		err error
	)
	switch {
	case src.Format == FormatPostgres && r.pg != nil:
		ds, err = r.pg.Load(ctx, src.ID)
	case src.Format == FormatPostgres:
		err = cerrors.NewUnsupported("translation format", "postgres store not configured")
	case src.Format == FormatMemory:
		err = cerrors.NewUnsupported("reload", "translation has no source")
	default:
		ds, err = Load(ctx, src)
	}
	if err != nil {
		logging.DatasetError(src.ID, src.Path, err)
		return nil, err
	}

	logging.DatasetLoaded(ds.ID, string(src.Format), len(ds.Books()), ds.VerseCount(), time.Since(start),
		"fingerprint", ds.Fingerprint)
	return ds, nil
}
