package engine

import "fmt"

// CompileError reports that script source text could not be turned into a
// Program. Recoverable: the previous program stays active. Line and Column
// are 1-based; Column may be 0 when only the line is known.
type CompileError struct {
	Message string
	Line    int
	Column  int
}

func (e *CompileError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("compile error at line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("compile error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("compile error: %s", e.Message)
}

// Eval error kinds. Kind is open-ended; these cover the built-in engine.
const (
	EvalKindParse   = "parse"
	EvalKindMatch   = "match"
	EvalKindMissing = "missing_field"
	EvalKindRuntime = "runtime"
)

// EvalError reports that a single record failed transformation. Recoverable:
// it never affects sibling records.
type EvalError struct {
	Kind    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval error (%s): %s", e.Kind, e.Message)
}
