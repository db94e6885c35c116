package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/EvanderIV/theology/internal/translations"
)

const kjvJSON = `{
	"__VERSION__": "King James Version",
	"John": {"3": {"15": "That whosoever believeth", "16": "For God so loved the world", "17": "For God sent not his Son"}},
	"Psalms": {"23": {"1": "The LORD is my shepherd"}}
}`

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// testGlobals points at a temp dir holding KJV and captures output.
func testGlobals(t *testing.T) (*Globals, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	createTestFile(t, dir, "KJV.json", kjvJSON)
	var out bytes.Buffer
	return &Globals{Translations: dir, Default: "KJV", Stdout: &out}, &out, dir
}

func TestCLIParses(t *testing.T) {
	tests := [][]string{
		{"lookup", "John", "3:16", "--version", "KJV", "--context"},
		{"scan", "-", "--json"},
		{"translations", "--load"},
		{"convert", "main_test.go", "out.sqlite"},
		{"serve", "--port", "9090", "--cache-ttl", "1m", "--allowed-origin", "https://a.example", "--allowed-origin", "https://b.example"},
		{"--log-level", "debug", "--log-format", "json", "version"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			var cli CLI
			parser, err := kong.New(&cli, kong.Name("theology"), kong.Exit(func(int) {}))
			if err != nil {
				t.Fatalf("kong.New: %v", err)
			}
			if _, err := parser.Parse(args); err != nil {
				t.Errorf("Parse(%v): %v", args, err)
			}
		})
	}
}

func TestCLIServeFlags(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("theology"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse([]string{"serve", "--allowed-origin", "https://a.example", "--rate-limit", "30"}); err != nil {
		t.Fatal(err)
	}
	if cli.Serve.Port != 8080 || cli.Serve.RateLimit != 30 || len(cli.Serve.AllowedOrigins) != 1 {
		t.Errorf("serve = %+v", cli.Serve)
	}
	if cli.Default != "KJV" || cli.LogLevel != "info" {
		t.Errorf("globals = %+v", cli.Globals)
	}
}

func TestLookupCmd(t *testing.T) {
	g, out, _ := testGlobals(t)
	ctx := context.Background()

	cmd := &LookupCmd{Reference: []string{"John", "3:16-17"}}
	if err := cmd.Run(ctx, g); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "John 3:16-17 (KJV)\n16 For God so loved the world\n17 For God sent not his Son\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	out.Reset()
	cmd = &LookupCmd{Reference: []string{"John 3:16"}, Context: true}
	if err := cmd.Run(ctx, g); err != nil {
		t.Fatalf("Run context: %v", err)
	}
	for _, line := range []string{"  15 That whosoever", "> 16 For God", "  17 For God sent"} {
		if !strings.Contains(out.String(), line) {
			t.Errorf("context output missing %q: %s", line, out.String())
		}
	}

	out.Reset()
	cmd = &LookupCmd{Reference: []string{"John 3:16"}, JSON: true}
	if err := cmd.Run(ctx, g); err != nil {
		t.Fatalf("Run json: %v", err)
	}
	if !strings.Contains(out.String(), `"16": "For God so loved the world"`) {
		t.Errorf("json output = %s", out.String())
	}
}

func TestLookupCmdErrors(t *testing.T) {
	g, _, _ := testGlobals(t)

	err := (&LookupCmd{Reference: []string{"Jude 1:1"}}).Run(context.Background(), g)
	if err == nil || !strings.Contains(err.Error(), "Book not found.") {
		t.Errorf("err = %v", err)
	}
	err = (&LookupCmd{Reference: []string{"John 3:16"}, Version: "NIV"}).Run(context.Background(), g)
	if err == nil || !strings.Contains(err.Error(), "translation not found") {
		t.Errorf("unknown translation err = %v", err)
	}
}

func TestScanCmd(t *testing.T) {
	g, out, dir := testGlobals(t)
	file := createTestFile(t, dir, "sermon.txt", "Today: John 3:16 and Jude 1:1.")

	if err := (&ScanCmd{File: file}).Run(context.Background(), g); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "John 3:16 [7:16] (KJV)\n  16 For God so loved the world") {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(got, "Jude 1:1 [21:29]: Book not found.") {
		t.Errorf("output = %q", got)
	}

	out.Reset()
	cmd := &ScanCmd{File: "-", JSON: true, Stdin: strings.NewReader("Psalm 23:1")}
	if err := cmd.Run(context.Background(), g); err != nil {
		t.Fatalf("Run stdin: %v", err)
	}
	var res struct {
		Translation string `json:"translation"`
		Citations   []struct {
			Citation string `json:"citation"`
		} `json:"citations"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("json: %v", err)
	}
	if res.Translation != "KJV" || len(res.Citations) != 1 || res.Citations[0].Citation != "Psalm 23:1" {
		t.Errorf("result = %+v", res)
	}

	if err := (&ScanCmd{File: filepath.Join(dir, "missing.txt")}).Run(context.Background(), g); err == nil {
		t.Error("missing file should fail")
	}
	if err := (&ScanCmd{File: "bad\x00name"}).Run(context.Background(), g); err == nil {
		t.Error("path with NUL should fail")
	}
}

func TestTranslationsCmd(t *testing.T) {
	g, out, dir := testGlobals(t)
	createTestFile(t, dir, "WEB.json", `{"__VERSION__": "World English Bible", "John": {"3": {"16": "For God so loved"}}}`)

	if err := (&TranslationsCmd{Load: true}).Run(context.Background(), g); err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("output = %q", out.String())
	}
	if !strings.Contains(lines[1], "King James Version") || !strings.HasSuffix(lines[1], "*") {
		t.Errorf("KJV line = %q", lines[1])
	}
	if strings.Contains(lines[1], " - ") {
		t.Errorf("loaded translation has no fingerprint: %q", lines[1])
	}
}

func TestConvertCmd(t *testing.T) {
	g, out, dir := testGlobals(t)
	in := filepath.Join(dir, "KJV.json")
	ctx := context.Background()

	for _, name := range []string{"kjv.sqlite", "kjv.json.xz"} {
		dst := filepath.Join(t.TempDir(), name)
		if err := (&ConvertCmd{In: in, Out: dst, ID: "KJV"}).Run(ctx, g); err != nil {
			t.Fatalf("convert to %s: %v", name, err)
		}

		_, format, _ := translations.DetectFormat(dst)
		ds, err := translations.Load(ctx, translations.Source{ID: "KJV", Format: format, Path: dst})
		if err != nil {
			t.Fatalf("reload %s: %v", name, err)
		}
		if ds.VerseCount() != 4 || ds.Name != "King James Version" {
			t.Errorf("%s: %d verses, name %q", name, ds.VerseCount(), ds.Name)
		}
	}
	if !strings.Contains(out.String(), "4 verses") {
		t.Errorf("output = %q", out.String())
	}

	if err := (&ConvertCmd{In: in, Out: filepath.Join(dir, "out.txt")}).Run(ctx, g); err == nil {
		t.Error("unsupported output should fail")
	}
	if err := (&ConvertCmd{In: createTestFile(t, dir, "notes.txt", "x"), Out: filepath.Join(dir, "o.json")}).Run(ctx, g); err == nil {
		t.Error("unrecognized input should fail")
	}
	if err := (&ConvertCmd{In: in, Out: filepath.Join(dir, "-o.json")}).Run(ctx, g); err == nil {
		t.Error("output name starting with a hyphen should fail")
	}
	mislabeled := createTestFile(t, dir, "fake.sqlite", kjvJSON)
	if err := (&ConvertCmd{In: mislabeled, Out: filepath.Join(dir, "o.json")}).Run(ctx, g); err == nil || !strings.Contains(err.Error(), "unexpected content") {
		t.Errorf("JSON named .sqlite: err = %v", err)
	}
}

func TestPublishCmdRequiresDSN(t *testing.T) {
	g, _, dir := testGlobals(t)
	err := (&PublishCmd{In: filepath.Join(dir, "KJV.json")}).Run(context.Background(), g)
	if err == nil || !strings.Contains(err.Error(), "--postgres-dsn") {
		t.Errorf("err = %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	g, out, _ := testGlobals(t)
	if err := (&VersionCmd{}).Run(g); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "theology version ") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSetupLogging(t *testing.T) {
	if err := setupLogging(&Globals{LogLevel: "debug", LogFormat: "json"}); err != nil {
		t.Errorf("setupLogging: %v", err)
	}
	if err := setupLogging(&Globals{LogLevel: "loud", LogFormat: "json"}); err == nil {
		t.Error("bad level should fail")
	}
}
