package probe

import (
	"errors"
	"fmt"
)

// FailureCode categorizes why a scope read produced no value.
type FailureCode string

const (
	// FailureNoAttribute: the candidate does not carry the model attribute
	// (or there was no candidate at all).
	FailureNoAttribute FailureCode = "no-attribute"

	// FailureRuntimeAbsent: the application's reactive runtime is not
	// reachable in the page's global context.
	FailureRuntimeAbsent FailureCode = "runtime-absent"

	// FailureScopeUnavailable: the runtime is present but no scope owns the
	// candidate element.
	FailureScopeUnavailable FailureCode = "scope-unavailable"

	// FailureEvaluationThrew: evaluating the model path raised an exception,
	// or the evaluation transport itself failed.
	FailureEvaluationThrew FailureCode = "evaluation-threw"
)

// EvalFailure is the typed outcome of a scope read that produced no value.
// It is always caught at the reader boundary: poll loops treat it as
// "this candidate does not match", never as a reason to abort.
type EvalFailure struct {
	Code   FailureCode
	Detail string
}

// Error implements the error interface.
func (e *EvalFailure) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("scope read failed: %s", e.Code)
	}
	return fmt.Sprintf("scope read failed: %s (%s)", e.Code, e.Detail)
}

// AsEvalFailure unwraps err into an *EvalFailure if it is one.
func AsEvalFailure(err error) (*EvalFailure, bool) {
	var ef *EvalFailure
	if errors.As(err, &ef) {
		return ef, true
	}
	return nil, false
}

func newFailure(code FailureCode, detail string) *EvalFailure {
	return &EvalFailure{Code: code, Detail: detail}
}
