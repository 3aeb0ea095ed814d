// Package checkpoint persists watcher cursors in a local pebble store so a
// restarted watch run resumes where it left off instead of reprocessing
// whole files.
package checkpoint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/pebble"

	"logremap/pkg/logger"
	"logremap/pkg/models"
)

const cursorPrefix = "cursor:"

// Store is a pebble-backed cursor sink.
type Store struct {
	db   *pebble.DB
	path string
}

// Open creates or reopens the checkpoint store at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		logger.Error("checkpoint_open_failed", "path", dir, "error", err)
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return &Store{db: db, path: dir}, nil
}

// SaveCursor records the offset for one source. Best-effort: a write error
// is logged, not returned, so the watcher is never blocked on checkpoints.
func (s *Store) SaveCursor(c models.Cursor) {
	key := []byte(cursorPrefix + c.Source)
	val := []byte(strconv.FormatInt(c.Offset, 10))
	if err := s.db.Set(key, val, pebble.NoSync); err != nil {
		logger.Warn("checkpoint_save_failed", "source", c.Source, "err", err)
	}
}

// LoadCursors returns all persisted cursors keyed by source path.
func (s *Store) LoadCursors() (map[string]int64, error) {
	lower := []byte(cursorPrefix)
	upper := []byte(cursorPrefix)
	upper[len(upper)-1]++

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[string]int64)
	for iter.First(); iter.Valid(); iter.Next() {
		source := strings.TrimPrefix(string(iter.Key()), cursorPrefix)
		off, err := strconv.ParseInt(string(iter.Value()), 10, 64)
		if err != nil {
			logger.Warn("checkpoint_entry_malformed", "source", source, "value", string(iter.Value()))
			continue
		}
		out[source] = off
	}
	return out, iter.Error()
}

// Close flushes pending writes and closes the store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Flush(); err != nil {
		logger.Error("checkpoint_flush_failed", "err", err)
	}
	err := s.db.Close()
	s.db = nil
	return err
}
