package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logremap/pkg/models"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{" JSON ", FormatJSON},
		{"json-pretty", FormatJSONPretty},
		{"ndjson", FormatNDJSON},
		{"jsonl", FormatNDJSON},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
	}
	for _, c := range cases {
		got, err := ParseFormat(c.in)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func rec(fields map[string]any) models.Record {
	return models.Record{Fields: fields}
}

func TestStreamWriterNDJSON(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, FormatNDJSON)
	if err := sw.Write(rec(map[string]any{"b": 1, "a": "x"})); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sw.Write(rec(map[string]any{"msg": "two"})); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	want := "{\"a\":\"x\",\"b\":1}\n{\"msg\":\"two\"}\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
	if sw.Count() != 2 {
		t.Fatalf("count = %d, want 2", sw.Count())
	}
}

func TestStreamWriterJSONArray(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, FormatJSON)
	for _, m := range []map[string]any{{"n": 1}, {"n": 2}} {
		if err := sw.Write(rec(m)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	want := "[\n  {\"n\":1},\n  {\"n\":2}\n]\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestStreamWriterJSONPretty(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, FormatJSONPretty)
	if err := sw.Write(rec(map[string]any{"a": 1})); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	want := "[\n  {\n    \"a\": 1\n  }\n]\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestStreamWriterEmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, FormatJSON)
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if buf.String() != "[]\n" {
		t.Fatalf("got %q, want []", buf.String())
	}
}

func TestStreamWriterYAML(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, FormatYAML)
	if err := sw.Write(rec(map[string]any{"level": "info"})); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sw.Write(rec(map[string]any{"level": "warn"})); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "---\n") != 2 {
		t.Fatalf("expected 2 document separators, got %q", out)
	}
	if !strings.Contains(out, "level: info") || !strings.Contains(out, "level: warn") {
		t.Fatalf("missing documents in %q", out)
	}
}

func TestCreateWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "result.ndjson")
	sw, err := Create(path, FormatNDJSON)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := sw.Write(rec(map[string]any{"ok": true})); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "{\"ok\":true}\n" {
		t.Fatalf("got %q", string(data))
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	got := ResolvePath(dir, FormatYAML)
	if filepath.Dir(got) != dir {
		t.Fatalf("expected file inside %s, got %s", dir, got)
	}
	base := filepath.Base(got)
	if !strings.HasPrefix(base, "logremap-") || !strings.HasSuffix(base, ".yaml") {
		t.Fatalf("unexpected generated name %q", base)
	}

	plain := filepath.Join(dir, "fixed.json")
	if got := ResolvePath(plain, FormatJSON); got != plain {
		t.Fatalf("plain path changed: %s", got)
	}
}

func TestTerminalFormat(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	defer f.Close()
	// a regular file is not a terminal
	if got := TerminalFormat(f); got != FormatNDJSON {
		t.Fatalf("TerminalFormat(file) = %q, want ndjson", got)
	}
	if got := TerminalFormat(nil); got != FormatNDJSON {
		t.Fatalf("TerminalFormat(nil) = %q, want ndjson", got)
	}
}
