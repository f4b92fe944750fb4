package datasets

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/etl"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/validation"
)

var gameMandatoryFields = []string{"id", "season", "homeId", "awayId"}

// GamesDataset stages the season's schedule and the venues it is played in.
type GamesDataset struct {
	replace bool
	deps    []etl.ExtractionUnit
	logger  ectologger.Logger
}

// NewGamesDataset creates the game transform-load unit
func NewGamesDataset(s Settings, games, venues etl.ExtractionUnit, logger ectologger.Logger) *GamesDataset {
	return &GamesDataset{
		replace: s.ReplaceProduction,
		deps:    []etl.ExtractionUnit{games, venues},
		logger:  logger,
	}
}

// Name returns the unit name
func (d *GamesDataset) Name() string {
	return "games"
}

// Dependencies returns the game and venue extractions
func (d *GamesDataset) Dependencies() []etl.ExtractionUnit {
	return d.deps
}

// Transform stages every valid extracted game
func (d *GamesDataset) Transform(ctx context.Context, store docstore.Store) error {
	ctx, span := tracing.StartSpan(ctx, "datasets.GamesDataset.Transform")
	defer span.End()

	raws, err := store.Find(ctx, docstore.Extraction(CollectionGame), docstore.Query{})
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Error("Failed to read extracted games")
		return err
	}

	staged := 0
	for _, raw := range raws {
		outcome := d.transformGame(ctx, store, raw)
		metrics.RecordTransformed(d.Name(), outcome.Kind.String())

		log := d.logger.WithContext(ctx).WithField("game_id", raw["id"])
		switch {
		case outcome.IsFatal():
			log.WithError(outcome.Err).Error("Failed to transform game")
			return outcome.Err
		case outcome.IsSkipped():
			log.WithField("reason", outcome.Reason).Warn("Skipping game")
		default:
			staged++
		}
	}

	d.logger.WithContext(ctx).Infof("Transformed %d of %d games", staged, len(raws))
	return nil
}

func (d *GamesDataset) transformGame(ctx context.Context, store docstore.Store, raw docstore.Document) etl.Outcome {
	if missing := validation.MissingFields(raw, gameMandatoryFields...); len(missing) > 0 {
		return etl.Skip("missing mandatory fields %v", missing)
	}
	var src cfbdGame
	if err := decode(raw, &src); err != nil {
		return etl.Skip("%v", err)
	}

	game := Game{
		GameID:         src.ID,
		Season:         src.Season,
		Week:           src.Week,
		SeasonType:     src.SeasonType,
		StartDate:      src.StartDate,
		NeutralSite:    src.NeutralSite,
		ConferenceGame: src.ConferenceGame,
		HomeTeamID:     src.HomeID,
		HomePoints:     src.HomePoints,
		AwayTeamID:     src.AwayID,
		AwayPoints:     src.AwayPoints,
	}

	if src.VenueID != nil {
		venue, outcome := etl.GetOrCreate(ctx, store, venueReference(*src.VenueID))
		if outcome.IsFatal() {
			return outcome
		}
		if id, ok := asInt(venue["venue_id"]); ok {
			game.VenueID = &id
		} else {
			d.logger.WithContext(ctx).WithField("reason", outcome.Reason).Warnf("Game %d has no venue", src.ID)
		}
	}

	doc, err := toDocument(game)
	if err != nil {
		return documentOutcome(err)
	}
	if err := store.UpsertByQuery(ctx, docstore.Staging(CollectionGame), docstore.Query{"game_id": src.ID}, doc); err != nil {
		return etl.Fail(err)
	}
	return etl.Success()
}

// Load merges the staged games and venues into production
func (d *GamesDataset) Load(ctx context.Context, store docstore.Store) etl.LoadReport {
	ctx, span := tracing.StartSpan(ctx, "datasets.GamesDataset.Load")
	defer span.End()

	report := etl.LoadNamespace(ctx, store, d.logger, docstore.Staging(CollectionVenue), docstore.Production(CollectionVenue), etl.FieldKey("venue_id"), d.replace)
	report.Add(etl.LoadNamespace(ctx, store, d.logger, docstore.Staging(CollectionGame), docstore.Production(CollectionGame), etl.FieldKey("game_id"), d.replace))
	return report
}

// Cleanup empties the game and venue staging collections
func (d *GamesDataset) Cleanup(ctx context.Context, store docstore.Store) error {
	return etl.CleanupNamespaces(ctx, store, d.logger,
		docstore.Staging(CollectionGame),
		docstore.Staging(CollectionVenue),
	)
}

// SeasonStartHooks keeps games whose teams are not in production out of the load.
type SeasonStartHooks struct {
	logger ectologger.Logger
}

// NewSeasonStartHooks creates the season_start post-transform and validate hooks
func NewSeasonStartHooks(logger ectologger.Logger) *SeasonStartHooks {
	return &SeasonStartHooks{logger: logger}
}

// PostTransform drops staged games with a home or away team missing from
// production for that season.
func (h *SeasonStartHooks) PostTransform(ctx context.Context, store docstore.Store) error {
	ctx, span := tracing.StartSpan(ctx, "datasets.SeasonStartHooks.PostTransform")
	defer span.End()

	games, err := store.Find(ctx, docstore.Staging(CollectionGame), docstore.Query{})
	if err != nil {
		return err
	}

	pruned := 0
	for _, game := range games {
		known, err := h.teamsKnown(ctx, store, game)
		if err != nil {
			return err
		}
		if known {
			continue
		}
		if _, err := store.DeleteByQuery(ctx, docstore.Staging(CollectionGame), docstore.Query{"game_id": game["game_id"]}); err != nil {
			return err
		}
		pruned++
		h.logger.WithContext(ctx).WithFields(map[string]any{
			"game_id":      game["game_id"],
			"home_team_id": game["home_team_id"],
			"away_team_id": game["away_team_id"],
		}).Warn("Pruning game with a team missing from production")
	}

	h.logger.WithContext(ctx).Infof("Pruned %d of %d staged games", pruned, len(games))
	return nil
}

func (h *SeasonStartHooks) teamsKnown(ctx context.Context, store docstore.Store, game docstore.Document) (bool, error) {
	for _, side := range []string{"home_team_id", "away_team_id"} {
		_, found, err := store.FindOne(ctx, docstore.Production(CollectionTeam), docstore.Query{
			"year":    game["season"],
			"team_id": game[side],
		})
		if err != nil || !found {
			return false, err
		}
	}
	return true, nil
}

// Validate checks every staged game still carries its mandatory fields.
func (h *SeasonStartHooks) Validate(ctx context.Context, store docstore.Store) error {
	ctx, span := tracing.StartSpan(ctx, "datasets.SeasonStartHooks.Validate")
	defer span.End()

	games, err := store.Find(ctx, docstore.Staging(CollectionGame), docstore.Query{})
	if err != nil {
		return err
	}
	for _, game := range games {
		if missing := validation.MissingFields(game, "game_id", "season", "home_team_id", "away_team_id"); len(missing) > 0 {
			return fmt.Errorf("%w: staged game %v is missing %v", etl.ErrValidationMiss, game["game_id"], missing)
		}
	}
	return nil
}
