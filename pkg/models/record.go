package models

import (
	"github.com/google/uuid"
)

// MessageField is the well-known field that carries the original line text
// into the mapping program.
const MessageField = "message"

// RawLine is one line of input as read from a source: the bytes plus the
// originating source identifier and the byte offset of the line start within
// that source. Immutable once produced.
type RawLine struct {
	Source string `json:"source"`
	Offset int64  `json:"offset"`
	Data   []byte `json:"data"`
}

// Record is the structured key-value view of one input line, the unit the
// mapping program transforms. The original text is stored under
// MessageField; ID is a per-record identifier used in diagnostics.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// NewRecord builds the initial Record for a raw line.
func NewRecord(raw RawLine) Record {
	return Record{
		ID:     uuid.NewString(),
		Fields: map[string]any{MessageField: string(raw.Data)},
	}
}
