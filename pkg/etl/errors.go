package etl

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/clover/pkg/docstore"
)

// FaultKind classifies why a stage failed
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultTransientRemote
	FaultValidationMiss
	FaultStorage
	FaultUnexpected
)

func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "none"
	case FaultTransientRemote:
		return "transient_remote"
	case FaultValidationMiss:
		return "validation_miss"
	case FaultStorage:
		return "storage"
	default:
		return "unexpected"
	}
}

var (
	// ErrSourceUnavailable marks a remote call that gave no result after every retry.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrValidationMiss marks a record or reference missing required fields.
	ErrValidationMiss = errors.New("validation miss")
	// ErrStagePanic wraps a panic recovered at a stage boundary.
	ErrStagePanic = errors.New("stage panicked")
)

// Classify maps an error onto the fault taxonomy.
func Classify(err error) FaultKind {
	switch {
	case err == nil:
		return FaultNone
	case errors.Is(err, ErrSourceUnavailable):
		return FaultTransientRemote
	case errors.Is(err, ErrValidationMiss):
		return FaultValidationMiss
	case errors.Is(err, docstore.ErrClosed),
		errors.Is(err, docstore.ErrInvalidDocument),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return FaultStorage
	case httperror.IsHTTPError(err) && httperror.GetStatusCode(err) >= http.StatusInternalServerError:
		return FaultStorage
	default:
		return FaultUnexpected
	}
}

// StageError records which stage failed, and which unit when one is to blame.
type StageError struct {
	Stage State
	Unit  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Unit, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fault classifies the wrapped error
func (e *StageError) Fault() FaultKind {
	return Classify(e.Err)
}
