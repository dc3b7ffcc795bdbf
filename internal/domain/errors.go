package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyText         = errors.New("empty review text")
	ErrUnrecognizedLabel = errors.New("unrecognized sentiment label")
	ErrMalformedResponse = errors.New("malformed classifier response")
)

// InputError rejects a whole batch: missing review column, ragged rows, bad ratings.
type InputError struct {
	Row    int // 1-based data row; 0 when the problem is the header or the body as a whole
	Column string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	msg := "invalid input"
	if e.Row > 0 {
		msg += fmt.Sprintf(" at row %d", e.Row)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %q)", e.Column)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InputError) Unwrap() error { return e.Err }

// ClassificationError is a per-review sentiment failure. It never aborts a batch.
type ClassificationError struct {
	Provider string
	Err      error
}

func (e *ClassificationError) Error() string {
	if e.Provider == "" {
		return "classification failed: " + e.Err.Error()
	}
	return fmt.Sprintf("classification failed (%s): %v", e.Provider, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export %s: %v", e.Format, e.Err) }

func (e *ExportError) Unwrap() error { return e.Err }
