package etl

import (
	"fmt"
)

// OutcomeKind is the result of processing one record
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSkipped
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of handling a single record. A skipped record is a
// validation miss and never fails the stage; a fatal one does.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

// Success reports a record that was processed
func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// Skip reports a record that was left out, with the reason
func Skip(format string, args ...any) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: fmt.Sprintf(format, args...)}
}

// Fail reports an error that must stop the stage
func Fail(err error) Outcome {
	o := Outcome{Kind: OutcomeFatal, Err: err}
	if err != nil {
		o.Reason = err.Error()
	}
	return o
}

// IsSuccess reports whether the record was processed
func (o Outcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

// IsSkipped reports whether the record was skipped
func (o Outcome) IsSkipped() bool { return o.Kind == OutcomeSkipped }

// IsFatal reports whether the stage must stop
func (o Outcome) IsFatal() bool { return o.Kind == OutcomeFatal }

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Kind.String()
	}
	return o.Kind.String() + ": " + o.Reason
}
