package setup

import (
	"encoding/json"
	"errors"
)

// Outcome names the result of a step for callers that need more than a bool.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeValidation    Outcome = Outcome(ErrorClassValidation)
	OutcomePrecondition  Outcome = Outcome(ErrorClassPrecondition)
	OutcomeConnectivity  Outcome = Outcome(ErrorClassConnectivity)
	OutcomeConflict      Outcome = Outcome(ErrorClassConflict)
	OutcomeConfiguration Outcome = Outcome(ErrorClassConfiguration)
	OutcomeInternal      Outcome = Outcome(ErrorClassInternal)
)

// Result is the uniform envelope returned by every caller-facing operation.
// Extra keys are flattened next to success and message when encoded.
type Result struct {
	Success bool
	Message string
	Outcome Outcome
	Field   string
	Extra   map[string]interface{}
}

// Succeeded builds a successful result.
func Succeeded(message string) Result {
	return Result{Success: true, Message: message, Outcome: OutcomeSuccess}
}

// Failed builds a failed result from a classified error. The message of the
// InstallError is used verbatim; unclassified errors become internal failures.
func Failed(err error) Result {
	var ie *InstallError
	if !errors.As(err, &ie) {
		return Result{
			Success: false,
			Message: err.Error(),
			Outcome: OutcomeInternal,
		}
	}
	msg := ie.Message
	if ie.Err != nil {
		msg = msg + ": " + ie.Err.Error()
	}
	return Result{
		Success: false,
		Message: msg,
		Outcome: Outcome(ie.Class),
		Field:   ie.Field,
	}
}

// With sets an extra key on the result and returns it.
func (r Result) With(key string, value interface{}) Result {
	extra := make(map[string]interface{}, len(r.Extra)+1)
	for k, v := range r.Extra {
		extra[k] = v
	}
	extra[key] = value
	r.Extra = extra
	return r
}

// Get returns an extra value.
func (r Result) Get(key string) (interface{}, bool) {
	v, ok := r.Extra[key]
	return v, ok
}

// MarshalJSON flattens Extra into the top-level object.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Extra)+4)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["success"] = r.Success
	out["message"] = r.Message
	if r.Outcome != "" {
		out["outcome"] = r.Outcome
	}
	if r.Field != "" {
		out["field"] = r.Field
	}
	return json.Marshal(out)
}
