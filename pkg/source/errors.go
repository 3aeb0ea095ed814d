package source

import "fmt"

// SourceError reports an I/O failure against one source. Recoverable per
// source: the watcher logs it and other sources continue unaffected.
type SourceError struct {
	Path string
	Op   string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
