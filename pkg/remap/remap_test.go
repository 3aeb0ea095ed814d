package remap

import (
	"errors"
	"sync"
	"testing"

	"logremap/pkg/engine"
	"logremap/pkg/models"
)

func mustCompile(t *testing.T, src string) engine.Program {
	t.Helper()
	p, err := New().Compile(src)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return p
}

func rec(msg string) models.Record {
	return models.NewRecord(models.RawLine{Source: "test", Data: []byte(msg)})
}

func TestCompile_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		line int
	}{
		{"UnknownDirective", "set a 1\nfrobnicate x", 2},
		{"BadRegex", "match ([unclosed", 1},
		{"JSONWithArgs", "json extra", 1},
		{"SetMissingValue", "set onlyfield", 1},
		{"RenameArity", "rename a b c", 1},
		{"UnterminatedQuote", "set a \"no end", 1},
		{"EmptyScript", "# just a comment\n\n", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().Compile(tc.src)
			if err == nil {
				t.Fatalf("expected compile error for %q", tc.src)
			}
			var ce *engine.CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *engine.CompileError, got %T", err)
			}
			if ce.Line != tc.line {
				t.Fatalf("expected error on line %d, got %d (%v)", tc.line, ce.Line, ce)
			}
		})
	}
}

func TestEvaluate_Directives(t *testing.T) {
	t.Run("JSONMerge", func(t *testing.T) {
		p := mustCompile(t, "json")
		out, err := p.Evaluate(rec(`{"user":"alice","attempts":3}`))
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if out.Fields["user"] != "alice" {
			t.Fatalf("expected user=alice, got %v", out.Fields["user"])
		}
		if out.Fields["attempts"] != float64(3) {
			t.Fatalf("expected attempts=3, got %v", out.Fields["attempts"])
		}
	})

	t.Run("JSONParseFailure", func(t *testing.T) {
		p := mustCompile(t, "json")
		_, err := p.Evaluate(rec("not json at all"))
		var ee *engine.EvalError
		if !errors.As(err, &ee) {
			t.Fatalf("expected *engine.EvalError, got %T", err)
		}
		if ee.Kind != engine.EvalKindParse {
			t.Fatalf("expected parse kind, got %q", ee.Kind)
		}
	})

	t.Run("MatchCaptures", func(t *testing.T) {
		p := mustCompile(t, `match ^(?P<host>\S+) (?P<action>\S+)$`)
		out, err := p.Evaluate(rec("web01 login"))
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if out.Fields["host"] != "web01" || out.Fields["action"] != "login" {
			t.Fatalf("unexpected captures: %v", out.Fields)
		}
	})

	t.Run("MatchMiss", func(t *testing.T) {
		p := mustCompile(t, `match ^\d+$`)
		_, err := p.Evaluate(rec("letters"))
		var ee *engine.EvalError
		if !errors.As(err, &ee) || ee.Kind != engine.EvalKindMatch {
			t.Fatalf("expected match eval error, got %v", err)
		}
	})

	t.Run("SetTypedValues", func(t *testing.T) {
		p := mustCompile(t, "set count 42\nset ratio 0.5\nset ok true\nset label \"two words\"\nset bare plain")
		out, err := p.Evaluate(rec("x"))
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if out.Fields["count"] != int64(42) {
			t.Fatalf("expected int64 42, got %T %v", out.Fields["count"], out.Fields["count"])
		}
		if out.Fields["ratio"] != 0.5 {
			t.Fatalf("expected 0.5, got %v", out.Fields["ratio"])
		}
		if out.Fields["ok"] != true {
			t.Fatalf("expected true, got %v", out.Fields["ok"])
		}
		if out.Fields["label"] != "two words" {
			t.Fatalf("expected quoted string kept, got %v", out.Fields["label"])
		}
		if out.Fields["bare"] != "plain" {
			t.Fatalf("expected plain string, got %v", out.Fields["bare"])
		}
	})

	t.Run("RenameDefaultDrop", func(t *testing.T) {
		p := mustCompile(t, "rename message msg\ndefault severity info\ndefault msg overwritten\ndrop unwanted\nset unwanted 1\ndrop unwanted")
		out, err := p.Evaluate(rec("hello"))
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if out.Fields["msg"] != "hello" {
			t.Fatalf("rename failed: %v", out.Fields)
		}
		if _, exists := out.Fields["message"]; exists {
			t.Fatalf("rename left original field: %v", out.Fields)
		}
		if out.Fields["severity"] != "info" {
			t.Fatalf("default failed: %v", out.Fields)
		}
		if out.Fields["msg"] != "hello" {
			t.Fatalf("default clobbered existing field: %v", out.Fields)
		}
		if _, exists := out.Fields["unwanted"]; exists {
			t.Fatalf("drop failed: %v", out.Fields)
		}
	})

	t.Run("RequireMissing", func(t *testing.T) {
		p := mustCompile(t, "require user")
		_, err := p.Evaluate(rec("no user here"))
		var ee *engine.EvalError
		if !errors.As(err, &ee) || ee.Kind != engine.EvalKindMissing {
			t.Fatalf("expected missing_field eval error, got %v", err)
		}
	})
}

func TestEvaluate_Concurrent(t *testing.T) {
	p := mustCompile(t, `match ^(?P<word>\S+)$`+"\nset tag fixed")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				out, err := p.Evaluate(rec("solo"))
				if err != nil {
					t.Errorf("evaluate failed: %v", err)
					return
				}
				if out.Fields["word"] != "solo" || out.Fields["tag"] != "fixed" {
					t.Errorf("unexpected fields: %v", out.Fields)
					return
				}
			}
		}()
	}
	wg.Wait()
}
