// Package engine defines the contract between the pipeline orchestrator and
// a mapping-script engine. The orchestrator never looks inside a Program;
// it only compiles source text and evaluates records against the result.
package engine

import (
	"logremap/pkg/models"
)

// Engine compiles mapping-script source text into an executable Program.
// Compile failures are reported as *CompileError.
type Engine interface {
	Compile(source string) (Program, error)
}

// Program is an opaque, immutable compiled artifact. Evaluate must be safe
// for concurrent use from many goroutines and must never mutate the Program;
// replacement happens by substitution in the program slot, never in place.
// Evaluation failures are reported as *EvalError.
type Program interface {
	Evaluate(rec models.Record) (models.Record, error)
}
