// Package source reads raw log lines from files by byte offset. Handles do
// not keep files open between reads, so rotation by rename is picked up on
// the next poll.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"logremap/pkg/logger"
	"logremap/pkg/models"
)

// DefaultMaxLineBytes bounds a single line when no limit is configured.
const DefaultMaxLineBytes = 1 << 20 // 1 MiB

// Handle identifies one line-oriented source file.
type Handle struct {
	path     string
	maxLine  int64
	readerSz int
}

// Open validates that path is a readable regular file and returns a Handle.
// maxLineBytes bounds individual lines; 0 means DefaultMaxLineBytes.
func Open(path string, maxLineBytes int64) (*Handle, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &SourceError{Path: path, Op: "stat", Err: err}
	}
	if fi.IsDir() {
		return nil, &SourceError{Path: path, Op: "open", Err: fmt.Errorf("is a directory")}
	}
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &Handle{path: path, maxLine: maxLineBytes, readerSz: 64 * 1024}, nil
}

// Path returns the source path used as the RawLine source identifier.
func (h *Handle) Path() string { return h.path }

// Stat returns the current size and modification time of the source.
func (h *Handle) Stat() (int64, time.Time, error) {
	fi, err := os.Stat(h.path)
	if err != nil {
		return 0, time.Time{}, &SourceError{Path: h.path, Op: "stat", Err: err}
	}
	return fi.Size(), fi.ModTime(), nil
}

// Size returns the current size of the source in bytes.
func (h *Handle) Size() (int64, error) {
	n, _, err := h.Stat()
	return n, err
}

// ReadFrom reads complete (newline-terminated) lines starting at offset and
// returns them with the new offset. An unterminated tail is left unread so a
// line still being appended is never consumed half-written. Blank lines and
// lines above the size limit advance the offset but produce no RawLine.
func (h *Handle) ReadFrom(offset int64) ([]models.RawLine, int64, error) {
	return h.read(offset, false)
}

// ReadToEOF reads every remaining line starting at offset, including an
// unterminated final line. Used for one-shot transforms of closed files.
func (h *Handle) ReadToEOF(offset int64) ([]models.RawLine, int64, error) {
	return h.read(offset, true)
}

func (h *Handle) read(offset int64, includeTail bool) ([]models.RawLine, int64, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, offset, &SourceError{Path: h.path, Op: "open", Err: err}
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, &SourceError{Path: h.path, Op: "seek", Err: err}
	}

	br := bufio.NewReaderSize(f, h.readerSz)
	var lines []models.RawLine
	pos := offset
	for {
		chunk, rerr := br.ReadBytes('\n')
		if len(chunk) > 0 {
			terminated := chunk[len(chunk)-1] == '\n'
			if !terminated && !includeTail {
				// partial line still being written, retry next poll
				break
			}
			start := pos
			pos += int64(len(chunk))
			data := bytes.TrimRight(chunk, "\r\n")
			switch {
			case len(data) == 0:
				// blank line, consumed but never submitted
			case int64(len(data)) > h.maxLine:
				logger.Warn("line_too_long", "source", h.path, "offset", start, "bytes", len(data), "max", h.maxLine)
			default:
				lines = append(lines, models.RawLine{Source: h.path, Offset: start, Data: data})
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return lines, pos, &SourceError{Path: h.path, Op: "read", Err: rerr}
		}
	}
	return lines, pos, nil
}
