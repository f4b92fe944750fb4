package datasets

import (
	"slices"
	"strconv"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/etl"
	"github.com/Ramsey-B/clover/pkg/retry"
	"github.com/Ramsey-B/clover/pkg/source"
)

// CFBD endpoints.
const (
	endpointTeams       = "teams"
	endpointConferences = "conferences"
	endpointVenues      = "venues"
	endpointGames       = "games"
)

func yearScopes(years []int) []etl.Scope {
	scopes := make([]etl.Scope, 0, len(years))
	for _, y := range years {
		scopes = append(scopes, etl.Scope{
			Params: map[string]string{"year": strconv.Itoa(y)},
			Stamp:  map[string]any{"year": y},
		})
	}
	return scopes
}

func inClassifications(classifications []string, fields ...string) func(source.Record) bool {
	return func(rec source.Record) bool {
		for _, f := range fields {
			if c, ok := rec[f].(string); ok && slices.Contains(classifications, c) {
				return true
			}
		}
		return false
	}
}

// NewTeamExtraction fetches teams per year, keeping the given classifications.
// Records are keyed by {id, year}; the year is stamped on since the source omits it.
func NewTeamExtraction(years []int, classifications []string, caller *retry.Caller, logger ectologger.Logger) *etl.Extraction {
	scopes := yearScopes(years)
	if len(classifications) == 0 {
		scopes = []etl.Scope{}
	}
	return etl.NewExtraction(etl.ExtractionConfig{
		Name:       CollectionTeam,
		Collection: CollectionTeam,
		Endpoint:   endpointTeams,
		Scopes:     scopes,
		Filter:     inClassifications(classifications, "classification"),
		Key:        etl.FieldKey("id", "year"),
	}, caller, logger)
}

// NewConferenceExtraction pulls conferences for each classification, keyed by id
func NewConferenceExtraction(classifications []string, caller *retry.Caller, logger ectologger.Logger) *etl.Extraction {
	var scopes []etl.Scope
	if len(classifications) == 0 {
		scopes = []etl.Scope{}
	}
	return etl.NewExtraction(etl.ExtractionConfig{
		Name:       CollectionConference,
		Collection: CollectionConference,
		Endpoint:   endpointConferences,
		Scopes:     scopes,
		Filter:     inClassifications(classifications, "classification"),
		Key:        etl.FieldKey("id"),
	}, caller, logger)
}

// NewVenueExtraction pulls every venue, keyed by id
func NewVenueExtraction(caller *retry.Caller, logger ectologger.Logger) *etl.Extraction {
	return etl.NewExtraction(etl.ExtractionConfig{
		Name:       CollectionVenue,
		Collection: CollectionVenue,
		Endpoint:   endpointVenues,
		Key:        etl.FieldKey("id"),
	}, caller, logger)
}

// NewGameExtraction fetches games per year. A game is kept when either side
// is in one of the classifications and, when weeks is set, it falls in one of them.
func NewGameExtraction(years []int, classifications []string, weeks []int, caller *retry.Caller, logger ectologger.Logger) *etl.Extraction {
	scopes := yearScopes(years)
	if len(classifications) == 0 {
		scopes = []etl.Scope{}
	}
	byClass := inClassifications(classifications, "homeClassification", "awayClassification")
	return etl.NewExtraction(etl.ExtractionConfig{
		Name:       CollectionGame,
		Collection: CollectionGame,
		Endpoint:   endpointGames,
		Scopes:     scopes,
		Filter: func(rec source.Record) bool {
			if !byClass(rec) {
				return false
			}
			if len(weeks) == 0 {
				return true
			}
			week, ok := asInt(rec["week"])
			return ok && slices.Contains(weeks, week)
		},
		Key: etl.FieldKey("id"),
	}, caller, logger)
}
