// File: internal/pipeline/errors.go
package pipeline

import "fmt"

// Kind classifies why a chain stage failed.
type Kind string

const (
	KindModel   Kind = "model"    // provider call failed
	KindEmpty   Kind = "empty"    // provider returned a blank completion
	KindBadJSON Kind = "bad_json" // no parseable object, or contract violated
	KindTimeout Kind = "timeout"  // stage or job deadline hit
	KindService Kind = "service"  // downstream agent service failure
)

// StageError attributes a chain failure to one agent. Error() stays short
// enough to store on a failed job; the wrapped cause carries the verbose
// detail that belongs in logs only.
type StageError struct {
	Agent string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("agent %s failed (%s)", e.Agent, e.Kind)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(agent string, kind Kind, err error) *StageError {
	return &StageError{Agent: agent, Kind: kind, Err: err}
}
