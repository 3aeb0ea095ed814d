package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logremap/internal/app"
	"logremap/pkg/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
}

// loadNDJSON parses every complete line of an NDJSON file. A missing file
// reads as empty, so callers can poll while the watcher is still warming
// up.
func loadNDJSON(t *testing.T, path string) []map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read %s: %v", path, err)
	}
	var out []map[string]any
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad ndjson line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func newEff(t *testing.T, cfg *config.Config) config.EffectiveConfigResult {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return config.EffectiveConfigResult{Config: cfg, Source: "test"}
}

func TestTransformFullFlow(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "rules.remap")
	input := filepath.Join(dir, "app.log")
	out := filepath.Join(dir, "out.ndjson")

	writeFile(t, script, `
# promote level and text, tag the service
match ^(?P<level>[a-z]+) (?P<text>.+)$
drop message
set service "api"
`)
	writeFile(t, input, "info one\nBOOM\nwarn three\n")

	cfg := &config.Config{Script: script, Input: input, Output: out, Format: "ndjson"}
	cfg.Pipeline.BatchSize = 2
	cfg.Pipeline.MaxWorkers = 2

	a, err := app.New(newEff(t, cfg), "test")
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	recs := loadNDJSON(t, out)
	if len(recs) != 2 {
		t.Fatalf("output records = %d, want 2 (%v)", len(recs), recs)
	}
	if recs[0]["level"] != "info" || recs[0]["text"] != "one" || recs[0]["service"] != "api" {
		t.Fatalf("first record = %v", recs[0])
	}
	if recs[1]["level"] != "warn" || recs[1]["text"] != "three" {
		t.Fatalf("second record = %v", recs[1])
	}

	fails := loadNDJSON(t, out+".failures")
	if len(fails) != 1 {
		t.Fatalf("failure records = %d, want 1 (%v)", len(fails), fails)
	}
	if fails[0]["raw"] != "BOOM" {
		t.Fatalf("failure raw = %v", fails[0]["raw"])
	}
	if off, _ := fails[0]["offset"].(float64); int64(off) != 9 {
		t.Fatalf("failure offset = %v, want 9", fails[0]["offset"])
	}
	if ep, _ := fails[0]["epoch"].(float64); uint64(ep) != 1 {
		t.Fatalf("failure epoch = %v, want 1", fails[0]["epoch"])
	}
}

func TestTransformFatalOnEvalError(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "rules.remap")
	input := filepath.Join(dir, "app.log")
	out := filepath.Join(dir, "out.ndjson")

	writeFile(t, script, "require level\n")
	writeFile(t, input, "no level here\n")

	skip := false
	cfg := &config.Config{Script: script, Input: input, Output: out, Format: "ndjson"}
	cfg.Pipeline.BatchSize = 1
	cfg.Pipeline.MaxWorkers = 1
	cfg.Pipeline.SkipErrors = &skip

	a, err := app.New(newEff(t, cfg), "test")
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if err := a.Run(context.Background()); err == nil {
		t.Fatalf("expected fatal pipeline error with skip_errors disabled")
	}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatchFullFlowWithHotReload(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "rules.remap")
	input := filepath.Join(dir, "app.log")
	out := filepath.Join(dir, "out.ndjson")

	writeFile(t, script, `set tag "v1"`+"\n")
	writeFile(t, input, "line-1\nline-2\n")

	cfg := &config.Config{Script: script, Input: input, Output: out, Format: "ndjson"}
	cfg.Pipeline.BatchSize = 10
	cfg.Pipeline.MaxWorkers = 2
	cfg.Watch.Enabled = true
	cfg.Watch.Interval = config.Duration(50 * time.Millisecond)
	cfg.Reload.Interval = config.Duration(50 * time.Millisecond)

	a, err := app.New(newEff(t, cfg), "test")
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	// the initial content flows through under the first program
	waitFor(t, 5*time.Second, "initial lines", func() bool {
		return len(loadNDJSON(t, out)) >= 2
	})
	for _, rec := range loadNDJSON(t, out) {
		if rec["tag"] != "v1" {
			t.Fatalf("pre-reload record = %v", rec)
		}
	}

	// swap the script, then keep appending probes until one is stamped by
	// the new program
	writeFile(t, script, `set tag "v2"`+"\n")
	probe := 0
	waitFor(t, 10*time.Second, "a v2-tagged record", func() bool {
		probe++
		appendFile(t, input, fmt.Sprintf("probe-%d\n", probe))
		time.Sleep(80 * time.Millisecond)
		for _, rec := range loadNDJSON(t, out) {
			if rec["tag"] == "v2" {
				return true
			}
		}
		return false
	})

	// let the watcher catch up on the last probes before stopping
	waitFor(t, 5*time.Second, "all probes processed", func() bool {
		return len(loadNDJSON(t, out)) >= 2+probe
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("watch run did not stop")
	}

	// exactly one terminal result per submitted line, no duplicates
	recs := loadNDJSON(t, out)
	seen := map[string]int{}
	for _, rec := range recs {
		msg, _ := rec["message"].(string)
		seen[msg]++
	}
	for msg, n := range seen {
		if n != 1 {
			t.Fatalf("message %q appeared %d times", msg, n)
		}
	}
	if len(recs) != 2+probe {
		t.Fatalf("output records = %d, want %d", len(recs), 2+probe)
	}
}

func TestWatchResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "rules.remap")
	input := filepath.Join(dir, "app.log")
	state := filepath.Join(dir, "state")

	writeFile(t, script, `set tag "v1"`+"\n")
	writeFile(t, input, "old-1\nold-2\n")

	runWatch := func(out string) (context.CancelFunc, chan error) {
		cfg := &config.Config{Script: script, Input: input, Output: out, Format: "ndjson"}
		cfg.Pipeline.BatchSize = 10
		cfg.Pipeline.MaxWorkers = 2
		cfg.Watch.Enabled = true
		cfg.Watch.Interval = config.Duration(50 * time.Millisecond)
		cfg.Watch.DataDir = state
		off := false
		cfg.Reload.Enabled = &off

		a, err := app.New(newEff(t, cfg), "test")
		if err != nil {
			t.Fatalf("app.New: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- a.Run(ctx) }()
		return cancel, errCh
	}

	stop := func(cancel context.CancelFunc, errCh chan error) {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("watch run did not stop")
		}
	}

	out1 := filepath.Join(dir, "out1.ndjson")
	cancel1, err1 := runWatch(out1)
	waitFor(t, 5*time.Second, "first run output", func() bool {
		return len(loadNDJSON(t, out1)) >= 2
	})
	stop(cancel1, err1)

	// the second run restores cursors from the checkpoint store and only
	// sees content appended after the first run stopped
	appendFile(t, input, "new-1\n")
	out2 := filepath.Join(dir, "out2.ndjson")
	cancel2, err2 := runWatch(out2)
	waitFor(t, 5*time.Second, "second run output", func() bool {
		return len(loadNDJSON(t, out2)) >= 1
	})
	stop(cancel2, err2)

	recs := loadNDJSON(t, out2)
	if len(recs) != 1 {
		t.Fatalf("second run records = %d, want 1 (%v)", len(recs), recs)
	}
	if recs[0]["message"] != "new-1" {
		t.Fatalf("second run record = %v", recs[0])
	}
}
