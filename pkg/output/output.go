// Package output encodes transformed records and writes them to files or
// streams. NDJSON and YAML outputs are append-friendly; JSON outputs are
// framed as a single array and finalized on Close.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	yamlv "github.com/goccy/go-yaml"
	"golang.org/x/term"

	"logremap/pkg/models"
)

// Format selects the on-disk encoding for transformed records.
type Format string

const (
	FormatJSON       Format = "json"
	FormatJSONPretty Format = "json-pretty"
	FormatNDJSON     Format = "ndjson"
	FormatYAML       Format = "yaml"
)

// ParseFormat normalizes and validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatJSONPretty:
		return FormatJSONPretty, nil
	case FormatNDJSON, "jsonl":
		return FormatNDJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (expected json, json-pretty, ndjson or yaml)", s)
}

// Ext returns the file extension for a format, without the dot.
func Ext(f Format) string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatNDJSON:
		return "ndjson"
	default:
		return "json"
	}
}

// Encode serializes a single record's fields. Map keys are emitted in
// sorted order so output is deterministic.
func Encode(rec models.Record, f Format) ([]byte, error) {
	switch f {
	case FormatJSON, FormatNDJSON:
		return json.Marshal(rec.Fields)
	case FormatJSONPretty:
		return json.MarshalIndent(rec.Fields, "", "  ")
	case FormatYAML:
		return yamlv.Marshal(rec.Fields)
	}
	return nil, fmt.Errorf("unknown output format %q", string(f))
}

// TerminalFormat returns the default format for an output stream:
// pretty-printed JSON when attached to a terminal, NDJSON otherwise.
func TerminalFormat(f *os.File) Format {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		return FormatJSONPretty
	}
	return FormatNDJSON
}
