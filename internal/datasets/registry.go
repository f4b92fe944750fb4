package datasets

import (
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/etl"
	"github.com/Ramsey-B/clover/pkg/retry"
	"github.com/Ramsey-B/clover/pkg/source"
)

const (
	PipelineInit        = "init"
	PipelineSeasonStart = "season_start"
)

// ErrUnknownPipeline is returned for a pipeline name with no registered units
var ErrUnknownPipeline = errors.New("unknown pipeline")

// Settings scope what a pipeline extracts and how it loads.
type Settings struct {
	Years             []int
	Classifications   []string
	Weeks             []int
	ReplaceProduction bool
}

// Names returns the known pipeline names
func Names() []string {
	return []string{PipelineInit, PipelineSeasonStart}
}

// Units returns the transform/load units and hooks that make up the named pipeline.
func Units(name string, s Settings, caller *retry.Caller, logger ectologger.Logger) ([]etl.TransformLoadUnit, etl.Hooks, error) {
	switch name {
	case PipelineInit:
		unit := NewInitDataset(s,
			NewTeamExtraction(s.Years, s.Classifications, caller, logger),
			NewConferenceExtraction(s.Classifications, caller, logger),
			NewVenueExtraction(caller, logger),
			logger,
		)
		return []etl.TransformLoadUnit{unit}, etl.NoopHooks{}, nil
	case PipelineSeasonStart:
		unit := NewGamesDataset(s,
			NewGameExtraction(s.Years, s.Classifications, s.Weeks, caller, logger),
			NewVenueExtraction(caller, logger),
			logger,
		)
		return []etl.TransformLoadUnit{unit}, NewSeasonStartHooks(logger), nil
	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownPipeline, name)
	}
}

// NewPipeline builds the named pipeline from its units and hooks
func NewPipeline(name string, s Settings, stores docstore.Provider, src source.Client, caller *retry.Caller, logger ectologger.Logger, opts ...etl.Option) (*etl.Pipeline, error) {
	units, hooks, err := Units(name, s, caller, logger)
	if err != nil {
		return nil, err
	}
	return etl.NewPipeline(name, units, hooks, stores, src, logger, opts...), nil
}

// Namespaces lists every namespace the known pipelines write in tier.
func Namespaces(tier docstore.Tier) []docstore.Namespace {
	var collections []string
	switch tier {
	case docstore.TierExtraction:
		collections = []string{CollectionTeam, CollectionConference, CollectionVenue, CollectionGame}
	default:
		collections = []string{CollectionTeam, CollectionTeamExt, CollectionConference, CollectionVenue, CollectionGame}
	}
	out := make([]docstore.Namespace, 0, len(collections))
	for _, c := range collections {
		out = append(out, docstore.Namespace{Tier: tier, Collection: c})
	}
	return out
}
