// Package pipeline provides the generic step pipeline that task runners
// execute. A pipeline is an ordered list of steps sharing one mutable state;
// steps emit observable events only through the Emitter handed to them, which
// keeps event index assignment with the single writer (the engine).
package pipeline

import (
	"context"
	"errors"
)

// Emitter is the only channel through which a step may produce observable
// events. Implementations are bound to one task and one step name.
type Emitter interface {
	// Log emits progress text that never contributes to the final artifact.
	Log(msg string)
	// Result emits content that contributes to the final artifact, with
	// optional structured data for observers that want more than text.
	Result(content string, data map[string]any)
	// Token emits one fragment of streamed completion output.
	Token(fragment string)
}

// Step is one named unit of pipeline work. Run reads and mutates the shared
// state and must be deterministic given the same inputs and provider
// responses. A step declares a failure recoverable by wrapping it with
// Recoverable; any other returned error aborts the task.
type Step interface {
	Name() string
	Run(ctx context.Context, st *State, em Emitter) error
}

// Pipeline is an ordered composition of steps defining one workflow variant.
// Flat pipelines run without section wrapping; their artifact is rebuilt from
// token events alone.
type Pipeline struct {
	mode  string
	steps []Step
	flat  bool
}

// New creates a sectioned pipeline for the given mode.
func New(mode string, steps ...Step) *Pipeline {
	return &Pipeline{mode: mode, steps: steps}
}

// NewFlat creates a flat (single-pass, unsectioned) pipeline.
func NewFlat(mode string, steps ...Step) *Pipeline {
	return &Pipeline{mode: mode, steps: steps, flat: true}
}

// Mode returns the mode identifier this pipeline runs under.
func (p *Pipeline) Mode() string { return p.mode }

// Steps returns the ordered steps.
func (p *Pipeline) Steps() []Step { return p.steps }

// Flat reports whether the pipeline runs without section wrapping.
func (p *Pipeline) Flat() bool { return p.flat }

// recoverableError marks a step failure that degrades the step's output to
// empty instead of aborting the task.
type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string { return e.err.Error() }
func (e *recoverableError) Unwrap() error { return e.err }

// Recoverable wraps err so that the engine logs it and continues the
// pipeline. Wrapping nil returns nil.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &recoverableError{err: err}
}

// IsRecoverable reports whether err was declared recoverable by a step.
func IsRecoverable(err error) bool {
	var re *recoverableError
	return errors.As(err, &re)
}
