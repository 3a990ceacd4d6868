package sheetdb

import (
	"fmt"
	"strings"
)

// SchemaError indicates a mismatch between a request and the declared table
// layout: a predicate referencing unknown columns, or a row whose width
// disagrees with the schema. Fatal for the operation that raised it.
type SchemaError struct {
	Table   string
	Columns []string
	Msg     string
	Err     error
}

func schemaErrf(tbl *Table, columns []string, err error, format string, args ...any) error {
	return &SchemaError{tbl.name, columns, fmt.Sprintf(format, args...), err}
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

func (e *SchemaError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	buf.WriteString(": ")
	buf.WriteString(e.Msg)
	if len(e.Columns) > 0 {
		buf.WriteString(": ")
		buf.WriteString(strings.Join(e.Columns, ", "))
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// PredicateError indicates a malformed filter predicate: a bad $between
// operand, a non-comparable operand, or an operator key this package does not
// recognize. Unknown operators fail closed and loudly rather than being
// silently ignored. Fatal for the evaluation of that predicate.
type PredicateError struct {
	Field string
	Op    string
	Msg   string
}

func predicateErrf(field, op string, format string, args ...any) error {
	return &PredicateError{field, op, fmt.Sprintf(format, args...)}
}

func (e *PredicateError) Error() string {
	var buf strings.Builder
	buf.WriteString("predicate")
	if e.Field != "" {
		buf.WriteByte(' ')
		buf.WriteString(e.Field)
	}
	if e.Op != "" {
		buf.WriteByte(' ')
		buf.WriteString(e.Op)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Msg)
	return buf.String()
}

// Violation is a single field-level validation failure.
type Violation struct {
	Field string
	Msg   string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Msg
}

// ValidationError aborts a save or insert. It carries the full list of
// violations so callers can surface all of them at once. In-memory record
// state is left untouched when it is returned.
type ValidationError struct {
	Table      string
	Violations []Violation
	Err        error // business-rule Validate() failure, if any
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	buf.WriteString(": validation failed")
	for _, v := range e.Violations {
		buf.WriteString(": ")
		buf.WriteString(v.String())
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
