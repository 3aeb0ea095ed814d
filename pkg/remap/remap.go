// Package remap implements the built-in mapping engine: a small
// line-oriented rule language compiled into an immutable step list.
//
// One directive per line; blank lines and lines starting with '#' are
// ignored. Directives:
//
//	json                  parse the message field as a JSON object into the record
//	match <regex>         named capture groups become fields; no match fails the record
//	set <field> <value>   set a field to a literal (quoted strings keep spaces)
//	rename <old> <new>    move a field; missing source is a no-op
//	default <field> <v>   set a field only when absent
//	drop <field>          remove a field
//	require <field>       fail the record when the field is missing
//
// Unquoted values that parse as integers, floats or booleans are stored
// typed; everything else is a string.
package remap

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"logremap/pkg/engine"
	"logremap/pkg/models"
)

// Engine compiles remap scripts. The zero value is ready to use.
type Engine struct{}

// New returns a remap Engine.
func New() *Engine { return &Engine{} }

type opcode int

const (
	opJSON opcode = iota
	opMatch
	opSet
	opRename
	opDefault
	opDrop
	opRequire
)

type step struct {
	op    opcode
	field string
	to    string
	val   any
	re    *regexp.Regexp
	line  int
}

type program struct {
	steps []step
}

// Compile parses source into a Program. Errors carry the offending line and,
// where known, column.
func (e *Engine) Compile(source string) (engine.Program, error) {
	var steps []step
	lines := strings.Split(source, "\n")
	for i, raw := range lines {
		ln := i + 1
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		directive, rest := splitWord(trimmed)
		var st step
		st.line = ln
		switch directive {
		case "json":
			if rest != "" {
				return nil, &engine.CompileError{Message: "json takes no arguments", Line: ln}
			}
			st.op = opJSON
		case "match":
			if rest == "" {
				return nil, &engine.CompileError{Message: "match requires a regular expression", Line: ln}
			}
			re, err := regexp.Compile(rest)
			if err != nil {
				return nil, &engine.CompileError{Message: fmt.Sprintf("invalid regular expression: %v", err), Line: ln}
			}
			st.op = opMatch
			st.re = re
		case "set", "default":
			field, val, err := parseFieldValue(directive, rest, ln)
			if err != nil {
				return nil, err
			}
			if directive == "set" {
				st.op = opSet
			} else {
				st.op = opDefault
			}
			st.field = field
			st.val = val
		case "rename":
			toks, err := tokenize(rest, ln)
			if err != nil {
				return nil, err
			}
			if len(toks) != 2 {
				return nil, &engine.CompileError{Message: "rename requires exactly two field names", Line: ln}
			}
			st.op = opRename
			st.field = toks[0].text
			st.to = toks[1].text
		case "drop", "require":
			toks, err := tokenize(rest, ln)
			if err != nil {
				return nil, err
			}
			if len(toks) != 1 {
				return nil, &engine.CompileError{Message: directive + " requires exactly one field name", Line: ln}
			}
			if directive == "drop" {
				st.op = opDrop
			} else {
				st.op = opRequire
			}
			st.field = toks[0].text
		default:
			return nil, &engine.CompileError{Message: fmt.Sprintf("unknown directive %q", directive), Line: ln, Column: 1 + leadingSpace(line)}
		}
		steps = append(steps, st)
	}
	if len(steps) == 0 {
		return nil, &engine.CompileError{Message: "script contains no directives"}
	}
	return &program{steps: steps}, nil
}

// Evaluate applies the compiled steps in order. The record's field map is
// mutated in place; on error the caller discards the record.
func (p *program) Evaluate(rec models.Record) (models.Record, error) {
	for _, st := range p.steps {
		switch st.op {
		case opJSON:
			msg, ok := rec.Fields[models.MessageField].(string)
			if !ok {
				return rec, &engine.EvalError{Kind: engine.EvalKindParse, Message: "message field is not a string"}
			}
			var parsed map[string]any
			if err := json.Unmarshal([]byte(msg), &parsed); err != nil {
				return rec, &engine.EvalError{Kind: engine.EvalKindParse, Message: fmt.Sprintf("invalid JSON in message: %v", err)}
			}
			for k, v := range parsed {
				rec.Fields[k] = v
			}
		case opMatch:
			msg, ok := rec.Fields[models.MessageField].(string)
			if !ok {
				return rec, &engine.EvalError{Kind: engine.EvalKindMatch, Message: "message field is not a string"}
			}
			m := st.re.FindStringSubmatch(msg)
			if m == nil {
				return rec, &engine.EvalError{Kind: engine.EvalKindMatch, Message: fmt.Sprintf("pattern %q did not match", st.re.String())}
			}
			for gi, name := range st.re.SubexpNames() {
				if gi == 0 || name == "" {
					continue
				}
				rec.Fields[name] = m[gi]
			}
		case opSet:
			rec.Fields[st.field] = st.val
		case opDefault:
			if _, exists := rec.Fields[st.field]; !exists {
				rec.Fields[st.field] = st.val
			}
		case opRename:
			if v, exists := rec.Fields[st.field]; exists {
				rec.Fields[st.to] = v
				delete(rec.Fields, st.field)
			}
		case opDrop:
			delete(rec.Fields, st.field)
		case opRequire:
			if _, exists := rec.Fields[st.field]; !exists {
				return rec, &engine.EvalError{Kind: engine.EvalKindMissing, Message: fmt.Sprintf("required field %q is missing", st.field)}
			}
		}
	}
	return rec, nil
}

// splitWord returns the first whitespace-delimited word and the trimmed
// remainder of the line.
func splitWord(s string) (string, string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

func parseFieldValue(directive, rest string, ln int) (string, any, error) {
	toks, err := tokenize(rest, ln)
	if err != nil {
		return "", nil, err
	}
	if len(toks) != 2 {
		return "", nil, &engine.CompileError{Message: directive + " requires a field name and a value", Line: ln}
	}
	return toks[0].text, scalarValue(toks[1]), nil
}

// scalarValue converts an unquoted token to a typed value where possible.
func scalarValue(t token) any {
	if t.quoted {
		return t.text
	}
	if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(t.text, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(t.text); err == nil {
		return b
	}
	return t.text
}

type token struct {
	text   string
	quoted bool
}

// tokenize splits a directive remainder into tokens. Double quotes group
// spaces and support backslash escapes for quote and backslash.
func tokenize(s string, ln int) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		if s[i] == '"' {
			i++
			var b strings.Builder
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, &engine.CompileError{Message: "unterminated quoted string", Line: ln}
			}
			toks = append(toks, token{text: b.String(), quoted: true})
			continue
		}
		for i < len(s) && s[i] != ' ' && s[i] != '\t' {
			i++
		}
		toks = append(toks, token{text: s[start:i]})
	}
	return toks, nil
}
