package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logremap/pkg/engine"
	"logremap/pkg/models"
)

// taggingEngine compiles any source into a program that stamps records
// with the source text; sources containing "bad" fail to compile.
func taggingEngine() fakeEngine {
	return fakeEngine{compile: func(src string) (engine.Program, error) {
		src = strings.TrimSpace(src)
		if strings.Contains(src, "bad") {
			return nil, &engine.CompileError{Message: "unknown directive", Line: 1}
		}
		tag := src
		return progFunc(func(rec models.Record) (models.Record, error) {
			rec.Fields["v"] = tag
			return rec, nil
		}), nil
	}}
}

func evalTag(t *testing.T, s *Slot) string {
	t.Helper()
	rec, err := s.Snapshot().Program.Evaluate(models.Record{Fields: map[string]any{}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	tag, _ := rec.Fields["v"].(string)
	return tag
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func TestReloaderSwapAndCompileFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.remap")
	writeScript(t, path, "v1")

	eng := taggingEngine()
	initial, err := eng.Compile("v1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	slot := NewSlot(initial)
	sink := &countSink{}
	r := NewReloader(eng, slot, path, time.Hour, sink, "v1")

	// unchanged file: no recompile, no swap
	r.reloadIfChanged(false)
	if slot.Epoch() != 1 {
		t.Fatalf("epoch after no-op check = %d, want 1", slot.Epoch())
	}

	// changed content swaps in the new program
	writeScript(t, path, "v2-longer")
	r.reloadIfChanged(false)
	if slot.Epoch() != 2 {
		t.Fatalf("epoch after change = %d, want 2", slot.Epoch())
	}
	if got := evalTag(t, slot); got != "v2-longer" {
		t.Fatalf("active program tag = %q", got)
	}
	if sink.reloads.Load() != 1 || sink.epoch.Load() != 2 {
		t.Fatalf("reload metrics: reloads=%d epoch=%d", sink.reloads.Load(), sink.epoch.Load())
	}

	// a bad edit keeps the previous program active
	writeScript(t, path, "bad edit here")
	r.reloadIfChanged(false)
	if slot.Epoch() != 2 {
		t.Fatalf("epoch after failed compile = %d, want 2", slot.Epoch())
	}
	if got := evalTag(t, slot); got != "v2-longer" {
		t.Fatalf("active program after failed compile = %q", got)
	}
	if sink.reloadFails.Load() != 1 {
		t.Fatalf("reload failure count = %d, want 1", sink.reloadFails.Load())
	}

	// fixing the script recovers on the next check
	writeScript(t, path, "v3!")
	r.reloadIfChanged(false)
	if slot.Epoch() != 3 || evalTag(t, slot) != "v3!" {
		t.Fatalf("recovery failed: epoch=%d tag=%q", slot.Epoch(), evalTag(t, slot))
	}
}

func TestReloaderForcedRecompile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.remap")
	writeScript(t, path, "same")

	eng := taggingEngine()
	initial, err := eng.Compile("same")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	slot := NewSlot(initial)
	r := NewReloader(eng, slot, path, time.Hour, &countSink{}, "same")

	// forced reload recompiles even though nothing changed
	r.reloadIfChanged(true)
	if slot.Epoch() != 2 {
		t.Fatalf("epoch after forced reload = %d, want 2", slot.Epoch())
	}
}

func TestReloaderForceSignal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.remap")
	writeScript(t, path, "sig")

	eng := taggingEngine()
	initial, err := eng.Compile("sig")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	slot := NewSlot(initial)
	r := NewReloader(eng, slot, path, 50*time.Millisecond, &countSink{}, "sig")
	r.Start()
	defer r.Stop()

	r.ForceReload()
	deadline := time.Now().Add(2 * time.Second)
	for slot.Epoch() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if slot.Epoch() < 2 {
		t.Fatalf("forced reload never applied, epoch = %d", slot.Epoch())
	}
}
