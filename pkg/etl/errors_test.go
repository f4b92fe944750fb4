package etl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/docstore"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FaultKind
	}{
		{"nil", nil, FaultNone},
		{"source", fmt.Errorf("teams: %w", ErrSourceUnavailable), FaultTransientRemote},
		{"validation", fmt.Errorf("%w: no id", ErrValidationMiss), FaultValidationMiss},
		{"closed handle", docstore.ErrClosed, FaultStorage},
		{"invalid document", fmt.Errorf("x: %w", docstore.ErrInvalidDocument), FaultStorage},
		{"cancelled", context.Canceled, FaultStorage},
		{"store 500", httperror.NewHTTPErrorf(http.StatusInternalServerError, "down"), FaultStorage},
		{"store 404", httperror.NewHTTPErrorf(http.StatusNotFound, "missing"), FaultUnexpected},
		{"panic", ErrStagePanic, FaultUnexpected},
		{"other", errors.New("?"), FaultUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StateExtracting, Unit: "team", Err: ErrValidationMiss}
	assert.Equal(t, "extracting team: validation miss", err.Error())
	assert.ErrorIs(t, err, ErrValidationMiss)
	assert.Equal(t, FaultValidationMiss, err.Fault())

	assert.Equal(t, "loading: validation miss", (&StageError{Stage: StateLoading, Err: ErrValidationMiss}).Error())
}

func TestOutcome(t *testing.T) {
	assert.True(t, Success().IsSuccess())
	assert.Equal(t, "success", Success().String())

	skipped := Skip("team %d missing %s", 4, "school")
	assert.True(t, skipped.IsSkipped())
	assert.Equal(t, "skipped: team 4 missing school", skipped.String())

	fatal := Fail(errBoom)
	assert.True(t, fatal.IsFatal())
	assert.ErrorIs(t, fatal.Err, errBoom)
	assert.Equal(t, "fatal: boom", fatal.String())
}
