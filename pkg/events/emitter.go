// Package events publishes pipeline run lifecycle events
package events

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/etl"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

const (
	EventTypeRunCompleted = "etl.run.completed"
	EventTypeRunAborted   = "etl.run.aborted"
)

// Publisher sends run events to a broker
type Publisher interface {
	PublishRunEvent(ctx context.Context, event *kafka.RunEvent) error
}

// Emitter turns finished runs into events. It is an etl.RunObserver.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a run observer that publishes through p
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// RunFinished publishes the event for report
func (e *Emitter) RunFinished(ctx context.Context, report etl.RunReport) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.RunFinished")
	defer span.End()

	event := NewRunEvent(report)
	if err := e.publisher.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", event.EventType)
		return err
	}
	return nil
}

// NewRunEvent renders a run report as a completed or aborted event
func NewRunEvent(report etl.RunReport) *kafka.RunEvent {
	event := &kafka.RunEvent{
		EventType:     EventTypeRunCompleted,
		SchemaVersion: SchemaVersion,
		RunID:         report.RunID,
		Pipeline:      report.Pipeline,
		State:         report.State.String(),
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		DurationMS:    report.Duration().Milliseconds(),
	}
	for _, s := range report.Path {
		event.Path = append(event.Path, s.String())
	}
	if len(report.Loads) > 0 {
		event.Loads = make(map[string]kafka.LoadCounts, len(report.Loads))
		for unit, l := range report.Loads {
			event.Loads[unit] = kafka.LoadCounts{
				Inserted:  l.Inserted,
				Replaced:  l.Replaced,
				Unchanged: l.Unchanged,
				Failed:    l.Failed,
			}
		}
	}

	if !report.Succeeded() {
		event.EventType = EventTypeRunAborted
		event.FailedStage = report.FailedStage.String()
		if report.Err != nil {
			event.Error = report.Err.Error()
			event.Fault = etl.Classify(report.Err).String()
			var stageErr *etl.StageError
			if errors.As(report.Err, &stageErr) && stageErr.Unit != "" {
				event.Error = stageErr.Unit + ": " + stageErr.Err.Error()
			}
		}
	}
	return event
}
