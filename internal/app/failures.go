package app

import (
	"bufio"
	"encoding/json"
	"os"

	"logremap/pkg/logger"
	"logremap/pkg/models"
)

// failureRecord is the NDJSON shape written for each failed record.
type failureRecord struct {
	Seq    uint64 `json:"seq"`
	Source string `json:"source"`
	Offset int64  `json:"offset"`
	Raw    string `json:"raw"`
	Epoch  uint64 `json:"epoch"`
	Error  string `json:"error"`
}

// failureLog appends failed records to an NDJSON file next to the output.
// The file is created on the first failure so clean runs leave nothing
// behind. RecordFailure runs on the collector goroutine only, so no
// locking is needed; Close must come after the pipeline has drained.
type failureLog struct {
	path string
	f    *os.File
	bw   *bufio.Writer
	bad  bool
	n    uint64
}

func newFailureLog(path string) *failureLog {
	return &failureLog{path: path}
}

func (l *failureLog) RecordFailure(res models.TransformResult) {
	if l.bad {
		return
	}
	if l.f == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Warn("failure_log_open_failed", "path", l.path, "err", err)
			l.bad = true
			return
		}
		l.f = f
		l.bw = bufio.NewWriter(f)
	}

	rec := failureRecord{
		Seq:    res.Seq,
		Source: res.Raw.Source,
		Offset: res.Raw.Offset,
		Raw:    string(res.Raw.Data),
		Epoch:  res.Epoch,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	l.bw.Write(b)
	l.bw.WriteByte('\n')
	l.n++
}

// Count reports how many failures were recorded.
func (l *failureLog) Count() uint64 { return l.n }

// Path returns the failure file location.
func (l *failureLog) Path() string { return l.path }

func (l *failureLog) Close() error {
	if l.f == nil {
		return nil
	}
	if err := l.bw.Flush(); err != nil {
		return err
	}
	return l.f.Close()
}
