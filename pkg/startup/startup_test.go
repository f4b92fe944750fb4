package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/logging"
)

func TestStartup_StartsInDependencyOrder(t *testing.T) {
	var started []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			started = append(started, name)
			return nil
		}
	}

	s := NewStartup(logging.Discard(), clockwork.NewFakeClock(), 1)
	s.AddDependency(&Dependency{Name: "store", Requires: []string{"postgres"}, StartFunc: record("store")})
	s.AddDependency(&Dependency{Name: "postgres", StartFunc: record("postgres")})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"postgres", "store"}, started)
}

func TestStartup_RetriesWithBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	calls := 0
	s := NewStartup(logging.Discard(), clock, 3)
	s.AddDependency(&Dependency{Name: "postgres", StartFunc: func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}})

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	require.NoError(t, <-done)
	assert.Equal(t, 3, calls)
}

func TestStartup_GivesUp(t *testing.T) {
	s := NewStartup(logging.Discard(), clockwork.NewFakeClock(), 1)
	s.AddDependency(&Dependency{Name: "redis", StartFunc: func(context.Context) error {
		return errors.New("no route")
	}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route")
}

func TestStartup_StopReverseOrder(t *testing.T) {
	var stopped []string
	stop := func(name string) func(context.Context) error {
		return func(context.Context) error {
			stopped = append(stopped, name)
			return nil
		}
	}

	s := NewStartup(logging.Discard(), clockwork.NewFakeClock(), 1)
	s.AddDependency(&Dependency{Name: "postgres", StopFunc: stop("postgres")})
	s.AddDependency(&Dependency{Name: "kafka", StopFunc: stop("kafka")})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"kafka", "postgres"}, stopped)
}
