// Command theology resolves Bible citations against local translation
// datasets. It serves the lookup API and offers the same lookups, citation
// scanning and dataset conversion from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/EvanderIV/theology/core/scripture"
	"github.com/EvanderIV/theology/internal/api"
	"github.com/EvanderIV/theology/internal/logging"
	"github.com/EvanderIV/theology/internal/lookup"
	"github.com/EvanderIV/theology/internal/translations"
	"github.com/EvanderIV/theology/internal/validation"
)

// Globals are flags shared by every command.
type Globals struct {
	Config    kong.ConfigFlag `help:"Load flags from a JSON config file" type:"existingfile"`
	LogLevel  string          `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,warning,error"`
	LogFormat string          `name:"log-format" help:"Log format (json, text)" default:"text" enum:"json,text"`

	Translations string `short:"d" help:"Directory of translation datasets" default:"./versions" type:"path" env:"THEOLOGY_TRANSLATIONS"`
	Default      string `name:"default-translation" help:"Translation used when none is named" default:"KJV"`
	AliasFile    string `name:"alias-file" help:"YAML file of extra book aliases" type:"path"`
	OSISAliases  bool   `name:"osis-aliases" help:"Accept OSIS book abbreviations (Matt, 1Cor)"`
	PostgresDSN  string `name:"postgres-dsn" help:"PostgreSQL translation catalog" env:"THEOLOGY_POSTGRES_DSN"`

	Stdout io.Writer `kong:"-"`
}

// CLI defines the command-line interface for theology.
type CLI struct {
	Globals

	Serve        ServeCmd        `cmd:"" help:"Start the lookup API server"`
	Lookup       LookupCmd       `cmd:"" help:"Resolve a citation"`
	Scan         ScanCmd         `cmd:"" help:"Find and resolve citations in a text file"`
	Translations TranslationsCmd `cmd:"" help:"List available translations"`
	Convert      ConvertCmd      `cmd:"" help:"Convert a dataset to SQLite, JSON or JSON.xz"`
	Publish      PublishCmd      `cmd:"" help:"Store a dataset in the PostgreSQL catalog"`
	Version      VersionCmd      `cmd:"" help:"Print version information"`
}

func (g *Globals) apiConfig() api.Config {
	return api.Config{
		TranslationsDir:    g.Translations,
		DefaultTranslation: g.Default,
		AliasFile:          g.AliasFile,
		OSISAliases:        g.OSISAliases,
		PostgresDSN:        g.PostgresDSN,
	}
}

// service builds a lookup service for one-shot commands.
func (g *Globals) service(ctx context.Context) (*lookup.Service, func(), error) {
	cfg := g.apiConfig()
	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, nil, err
	}
	reg, closer, err := cfg.OpenRegistry(ctx)
	if err != nil {
		return nil, nil, err
	}
	return lookup.New(reg, resolver, lookup.Options{}), closer, nil
}

func (g *Globals) out() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

// ServeCmd starts the REST and WebSocket server.
type ServeCmd struct {
	Port           int           `help:"HTTP server port" default:"8080" env:"PORT"`
	Preload        bool          `help:"Load every translation at startup"`
	CacheTTL       time.Duration `name:"cache-ttl" help:"Lookup cache entry lifetime (0 disables)" default:"10m"`
	CacheSize      int           `name:"cache-size" help:"Maximum cached lookups (0 is unbounded)" default:"10000"`
	RateLimit      int           `name:"rate-limit" help:"Requests per minute per client (0 disables)" default:"0"`
	RateBurst      int           `name:"rate-burst" help:"Rate limit burst size" default:"10"`
	MaxBody        int64         `name:"max-body" help:"Maximum POST /citations body in bytes" default:"1048576"`
	APIKey         string        `name:"api-key" help:"Require this X-API-Key for translation reloads" env:"THEOLOGY_API_KEY"`
	TLSCert        string        `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey         string        `name:"tls-key" help:"TLS private key file" type:"path"`
	AllowedOrigins []string      `name:"allowed-origin" help:"Allowed CORS and WebSocket origins (repeatable; default all)"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg := g.apiConfig()
	cfg.Port = c.Port
	cfg.Preload = c.Preload
	cfg.CacheTTL = c.CacheTTL
	cfg.CacheSize = c.CacheSize
	cfg.RateLimitRequests = c.RateLimit
	cfg.RateLimitBurst = c.RateBurst
	cfg.MaxBodyBytes = c.MaxBody
	cfg.AllowedOrigins = c.AllowedOrigins
	if c.APIKey != "" {
		cfg.Auth = api.AuthConfig{Enabled: true, APIKey: c.APIKey}
	}
	if c.TLSCert != "" || c.TLSKey != "" {
		cfg.TLS = api.TLSConfig{Enabled: true, CertFile: c.TLSCert, KeyFile: c.TLSKey}
	}
	return api.Start(ctx, cfg)
}

// LookupCmd resolves one citation.
type LookupCmd struct {
	Reference []string `arg:"" help:"Citation, e.g. John 3:16-18"`
	Version   string   `short:"v" help:"Translation ID (default translation if empty)"`
	Context   bool     `short:"c" help:"Include the verse before and after"`
	JSON      bool     `help:"Print the API's JSON response"`
}

func (c *LookupCmd) Run(ctx context.Context, g *Globals) error {
	svc, closer, err := g.service(ctx)
	if err != nil {
		return err
	}
	defer closer()

	reference := strings.Join(c.Reference, " ")
	w := g.out()

	if c.Context {
		res, err := svc.Context(ctx, reference, c.Version)
		if err != nil {
			return describe(err)
		}
		if c.JSON {
			return writeJSON(w, res)
		}
		fmt.Fprintf(w, "%s (%s)\n", res.Reference, res.Translation)
		printVerses(w, "  ", res.Prior)
		printVerses(w, "> ", res.Main)
		printVerses(w, "  ", res.Next)
		return nil
	}

	res, err := svc.Verse(ctx, reference, c.Version)
	if err != nil {
		return describe(err)
	}
	if c.JSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s (%s)\n", res.Reference, res.Translation)
	printVerses(w, "", res.Text)
	return nil
}

// ScanCmd resolves every citation found in a file.
type ScanCmd struct {
	File    string    `arg:"" help:"Text file to scan, or - for stdin"`
	Version string    `short:"v" help:"Translation ID (default translation if empty)"`
	JSON    bool      `help:"Print results as JSON"`
	Stdin   io.Reader `kong:"-"`
}

func (c *ScanCmd) Run(ctx context.Context, g *Globals) error {
	text, err := c.read()
	if err != nil {
		return err
	}

	svc, closer, err := g.service(ctx)
	if err != nil {
		return err
	}
	defer closer()

	id, results, err := svc.Citations(ctx, text, c.Version)
	if err != nil {
		return describe(err)
	}
	w := g.out()
	if c.JSON {
		return writeJSON(w, map[string]any{"translation": id, "citations": results})
	}
	for _, r := range results {
		if r.ErrorKind != "" {
			fmt.Fprintf(w, "%s [%d:%d]: %s\n", r.Citation, r.Start, r.End, r.Message)
			continue
		}
		fmt.Fprintf(w, "%s [%d:%d] (%s)\n", r.Citation, r.Start, r.End, id)
		printVerses(w, "  ", r.Text)
	}
	return nil
}

func (c *ScanCmd) read() (string, error) {
	if c.File == "-" {
		in := c.Stdin
		if in == nil {
			in = os.Stdin
		}
		data, err := io.ReadAll(in)
		return string(data), err
	}
	if err := validation.ValidatePath(c.File); err != nil {
		return "", fmt.Errorf("invalid input %q: %w", c.File, err)
	}
	data, err := os.ReadFile(c.File)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", c.File, err)
	}
	return string(data), nil
}

// TranslationsCmd lists the registry.
type TranslationsCmd struct {
	Load bool `help:"Load each translation to report fingerprints and failures"`
	JSON bool `help:"Print as JSON"`
}

func (c *TranslationsCmd) Run(ctx context.Context, g *Globals) error {
	cfg := g.apiConfig()
	cfg.Preload = c.Load
	reg, closer, err := cfg.OpenRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	infos := reg.List()
	if c.JSON {
		return writeJSON(g.out(), map[string]any{"default": reg.Default(), "translations": infos})
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFORMAT\tFINGERPRINT\tDEFAULT")
	for _, info := range infos {
		def := ""
		if info.ID == reg.Default() {
			def = "*"
		}
		fp := info.Fingerprint
		if fp == "" {
			fp = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", info.ID, info.Name, info.Format, fp, def)
	}
	return tw.Flush()
}

// ConvertCmd rewrites a dataset in another format.
type ConvertCmd struct {
	In  string `arg:"" help:"Source dataset (.json, .json.xz, .xml, .sqlite)" type:"existingfile"`
	Out string `arg:"" help:"Destination (.sqlite, .json, .json.xz)" type:"path"`
	ID  string `help:"Translation ID to record (default: source file name)"`
}

func (c *ConvertCmd) Run(ctx context.Context, g *Globals) error {
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output %q: %w", c.Out, err)
	}
	if err := validation.ValidateFilename(filepath.Base(c.Out)); err != nil {
		return fmt.Errorf("invalid output %q: %w", c.Out, err)
	}
	ds, err := loadFile(ctx, c.In, c.ID)
	if err != nil {
		return err
	}
	if err := translations.Write(ctx, ds, c.Out); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "wrote %s: %d books, %d verses\n", c.Out, len(ds.Books()), ds.VerseCount())
	return nil
}

// PublishCmd uploads a dataset to PostgreSQL.
type PublishCmd struct {
	In string `arg:"" help:"Source dataset" type:"existingfile"`
	ID string `help:"Translation ID to record (default: source file name)"`
}

func (c *PublishCmd) Run(ctx context.Context, g *Globals) error {
	if g.PostgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required")
	}
	ds, err := loadFile(ctx, c.In, c.ID)
	if err != nil {
		return err
	}

	store, err := translations.NewPostgresStore(ctx, g.PostgresDSN)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Initialize(ctx); err != nil {
		return err
	}
	if err := store.Store(ctx, ds); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "published %s (%s): %d verses\n", ds.ID, ds.Name, ds.VerseCount())
	return nil
}

func loadFile(ctx context.Context, path, id string) (*scripture.Dataset, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid input %q: %w", path, err)
	}
	detected, format, ok := translations.DetectFormat(path)
	if !ok {
		return nil, fmt.Errorf("unrecognized dataset file %s", path)
	}
	if id == "" {
		id = detected
	}
	return translations.Load(ctx, translations.Source{ID: id, Format: format, Path: path})
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(g.out(), "theology version %s\n", api.Version)
	return nil
}

// describe turns a lookup failure into the message the API would send.
func describe(err error) error {
	if kind := scripture.KindOf(err); kind != 0 {
		return fmt.Errorf("%s (%w)", kind.Message(), err)
	}
	return err
}

func printVerses(w io.Writer, prefix string, verses scripture.Verses) {
	for _, v := range verses {
		fmt.Fprintf(w, "%s%d %s\n", prefix, v.Number, v.Text)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogging(g *Globals) error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.Setup(os.Stderr, level, format)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("theology"),
		kong.Description("Scripture reference resolver"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Configuration(kong.JSON, "/etc/theology/config.json", "~/.config/theology/config.json"),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	kctx.FatalIfErrorf(setupLogging(&cli.Globals))

	err := kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}
