package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/etl"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
)

type fakePublisher struct {
	events []*kafka.RunEvent
	err    error
}

func (p *fakePublisher) PublishRunEvent(_ context.Context, event *kafka.RunEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func TestEmitter_RunCompleted(t *testing.T) {
	pub := &fakePublisher{}
	started := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	err := NewEmitter(pub, logging.Discard()).RunFinished(context.Background(), etl.RunReport{
		RunID:      "run-1",
		Pipeline:   "init",
		State:      etl.StateDone,
		Path:       []etl.State{etl.StateIdle, etl.StateExtracting, etl.StateDone},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Loads:      map[string]etl.LoadReport{"init": {Inserted: 4, Unchanged: 2}},
	})
	require.NoError(t, err)
	require.Len(t, pub.events, 1)

	event := pub.events[0]
	assert.Equal(t, EventTypeRunCompleted, event.EventType)
	assert.Equal(t, SchemaVersion, event.SchemaVersion)
	assert.Equal(t, []string{"idle", "extracting", "done"}, event.Path)
	assert.Equal(t, int64(1500), event.DurationMS)
	assert.Equal(t, kafka.LoadCounts{Inserted: 4, Unchanged: 2}, event.Loads["init"])
	assert.Empty(t, event.FailedStage)
	assert.Empty(t, event.Error)
}

func TestEmitter_RunAborted(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}

	err := NewEmitter(pub, logging.Discard()).RunFinished(context.Background(), etl.RunReport{
		RunID:       "run-2",
		Pipeline:    "season_start",
		State:       etl.StateAborted,
		FailedStage: etl.StateTransforming,
		Err:         &etl.StageError{Stage: etl.StateTransforming, Unit: "games", Err: etl.ErrValidationMiss},
	})
	assert.EqualError(t, err, "broker down")
	require.Len(t, pub.events, 1)

	event := pub.events[0]
	assert.Equal(t, EventTypeRunAborted, event.EventType)
	assert.Equal(t, "transforming", event.FailedStage)
	assert.Equal(t, "validation_miss", event.Fault)
	assert.Equal(t, "games: validation miss", event.Error)
	assert.Nil(t, event.Loads)
}
