package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"

	"logremap/pkg/models"
)

const writerBufSize = 64 * 1024

// StreamWriter frames encoded records for one output stream. A mutex
// serializes access so a background flusher can run beside the single
// writing goroutine.
type StreamWriter struct {
	format Format
	w      io.Writer
	mu     sync.Mutex
	bw     *bufio.Writer
	file   *os.File
	n      uint64
}

// NewStreamWriter wraps an existing writer. Close finalizes framing but
// does not close the underlying writer.
func NewStreamWriter(w io.Writer, f Format) *StreamWriter {
	return &StreamWriter{format: f, w: w, bw: bufio.NewWriterSize(w, writerBufSize)}
}

// Create opens path for writing, creating parent directories as needed.
// Close finalizes framing and closes the file.
func Create(path string, f Format) (*StreamWriter, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	sw := NewStreamWriter(fh, f)
	sw.file = fh
	return sw, nil
}

// Write encodes one record and appends it with the format's framing.
func (sw *StreamWriter) Write(rec models.Record) error {
	enc, err := Encode(rec, sw.format)
	if err != nil {
		return err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	switch sw.format {
	case FormatNDJSON:
		buf.Write(enc)
		buf.WriteByte('\n')
	case FormatJSON, FormatJSONPretty:
		if sw.n == 0 {
			buf.WriteString("[\n  ")
		} else {
			buf.WriteString(",\n  ")
		}
		if sw.format == FormatJSONPretty {
			// re-indent nested lines to sit inside the array
			buf.WriteString(strings.ReplaceAll(string(enc), "\n", "\n  "))
		} else {
			buf.Write(enc)
		}
	case FormatYAML:
		buf.WriteString("---\n")
		buf.Write(enc)
	default:
		return fmt.Errorf("unknown output format %q", string(sw.format))
	}

	if _, err := sw.bw.Write(buf.B); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	sw.n++
	return nil
}

// Count returns the number of records written so far.
func (sw *StreamWriter) Count() uint64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.n
}

// Flush pushes buffered bytes to the underlying writer so partial output
// is visible between poll cycles.
func (sw *StreamWriter) Flush() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.bw.Flush()
}

// Close finalizes framing, flushes, and closes the file if Create opened
// one.
func (sw *StreamWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	switch sw.format {
	case FormatJSON, FormatJSONPretty:
		if sw.n == 0 {
			if _, err := sw.bw.WriteString("[]\n"); err != nil {
				return err
			}
		} else if _, err := sw.bw.WriteString("\n]\n"); err != nil {
			return err
		}
	}
	if err := sw.bw.Flush(); err != nil {
		return err
	}
	if sw.file != nil {
		return sw.file.Close()
	}
	return nil
}

// ResolvePath expands an output target into a concrete file path. A target
// that is an existing directory, or ends in a path separator, gets a
// timestamped file name inside it.
func ResolvePath(target string, f Format) string {
	asDir := strings.HasSuffix(target, string(os.PathSeparator)) || strings.HasSuffix(target, "/")
	if !asDir {
		if st, err := os.Stat(target); err == nil && st.IsDir() {
			asDir = true
		}
	}
	if asDir {
		name := fmt.Sprintf("logremap-%s.%s", time.Now().Format("20060102-150405"), Ext(f))
		return filepath.Join(target, name)
	}
	return target
}
