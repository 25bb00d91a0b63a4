// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is. Input-stage errors are never
// retried; every other stage consumes one attempt of the retry budget.
var (
	ErrMissingInput     = errors.New("missing input")
	ErrEmptyInput       = errors.New("empty input")
	ErrUnreadableInput  = errors.New("unreadable input")
	ErrOutputDirectory  = errors.New("output directory error")
	ErrConversionEngine = errors.New("conversion engine error")
	ErrValidation       = errors.New("output validation error")
	ErrUnexpected       = errors.New("unexpected error")
)

// InputKind classifies an input-stage failure.
type InputKind int

const (
	MissingInput InputKind = iota
	EmptyInput
	UnreadableInput
)

func (k InputKind) sentinel() error {
	switch k {
	case MissingInput:
		return ErrMissingInput
	case EmptyInput:
		return ErrEmptyInput
	}
	return ErrUnreadableInput
}

// InputError reports a source document that cannot be converted.
type InputError struct {
	Kind InputKind
	// Path is the source path as given by the caller.
	Path string
	// Format is the source format name used in messages.
	Format string
	// Problems lists structural defects found in the source, if any.
	Problems []string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *InputError) Error() string {
	var msg string
	switch e.Kind {
	case MissingInput:
		msg = "Input file not found: " + e.Path
	case EmptyInput:
		msg = fmt.Sprintf("%s file is empty: %s", titleFormat(e.Format), e.Path)
	default:
		if len(e.Problems) > 0 {
			return fmt.Sprintf("Invalid %s structure in %s: %s",
				titleFormat(e.Format), e.Path, strings.Join(e.Problems, "; "))
		}
		name := e.Format
		if name == "" {
			name = "input"
		}
		msg = fmt.Sprintf("Could not read %s file: %s", name, e.Path)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *InputError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind.
func (e *InputError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Stage identifies the part of a single attempt that failed.
type Stage string

const (
	StageOutputDir Stage = "output directory"
	StageEngine    Stage = "engine"
	StagePostWrite Stage = "post-processing"
)

// EngineError reports a failed attempt before the output could be validated.
type EngineError struct {
	Stage Stage
	// Engine names the backend that ran the attempt.
	Engine string
	// Source is the source path of the attempt.
	Source string
	Cause  error
}

func (e *EngineError) Error() string {
	switch e.Stage {
	case StageOutputDir:
		return fmt.Sprintf("Failed to create output directory for %s: %v", e.Source, e.Cause)
	case StagePostWrite:
		return fmt.Sprintf("Failed to post-process output of %s: %v", e.Source, e.Cause)
	}
	name := e.Engine
	if name == "" {
		name = "Engine"
	} else {
		name = titleFormat(name)
	}
	return fmt.Sprintf("%s conversion failed: %v", name, e.Cause)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

func (e *EngineError) Is(target error) bool {
	if e.Stage == StageOutputDir {
		return target == ErrOutputDirectory
	}
	return target == ErrConversionEngine
}

// ValidationError reports an output that failed one or more checks.
type ValidationError struct {
	Output   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnexpectedError wraps a panic or an error outside the taxonomy.
type UnexpectedError struct {
	Value any
}

func (e *UnexpectedError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *UnexpectedError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func (e *UnexpectedError) Is(target error) bool {
	return target == ErrUnexpected
}

// Retryable reports whether another attempt could succeed after err.
// Input errors are permanent; nil is not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var in *InputError
	return !errors.As(err, &in)
}

func titleFormat(s string) string {
	switch s {
	case "":
		return "Input"
	case "html", "pdf", "docx":
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
