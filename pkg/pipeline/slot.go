package pipeline

import (
	"sync/atomic"

	"logremap/pkg/engine"
)

// Active pairs a compiled program with the epoch it was installed at.
type Active struct {
	Program engine.Program
	Epoch   uint64
}

// Slot holds the currently active program. Reads never block and always
// observe a complete program paired with its epoch; replacement is
// substitution, never in-place mutation. Swap has a single caller (the
// reloader), so no compare-and-swap loop is needed.
type Slot struct {
	cur atomic.Pointer[Active]
}

// NewSlot creates a slot holding the initial program at epoch 1.
func NewSlot(p engine.Program) *Slot {
	s := &Slot{}
	s.cur.Store(&Active{Program: p, Epoch: 1})
	return s
}

// Snapshot returns the active program and epoch. The returned value stays
// valid for the caller even if a swap happens concurrently.
func (s *Slot) Snapshot() *Active {
	return s.cur.Load()
}

// Swap installs a new program and returns the new epoch.
func (s *Slot) Swap(p engine.Program) uint64 {
	next := s.cur.Load().Epoch + 1
	s.cur.Store(&Active{Program: p, Epoch: next})
	return next
}

// Epoch returns the current epoch.
func (s *Slot) Epoch() uint64 {
	return s.cur.Load().Epoch
}
