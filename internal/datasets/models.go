package datasets

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/etl"
	"github.com/Ramsey-B/clover/pkg/validation"
)

// Collection names shared by every tier.
const (
	CollectionTeam       = "team"
	CollectionTeamExt    = "team_ext"
	CollectionConference = "conference"
	CollectionVenue      = "venue"
	CollectionGame       = "game"
)

// Team is the staged and production form of a team season
type Team struct {
	TeamID         int     `json:"team_id" validate:"required"`
	Year           int     `json:"year" validate:"required"`
	School         string  `json:"school" validate:"required"`
	ConferenceID   int     `json:"conference_id" validate:"required"`
	Classification string  `json:"classification" validate:"required"`
	Division       *string `json:"division"`
	VenueID        *int    `json:"venue_id"`
}

// TeamExt holds the descriptive team fields kept apart from Team
type TeamExt struct {
	TeamID         int      `json:"team_id" validate:"required"`
	Year           int      `json:"year" validate:"required"`
	Mascot         *string  `json:"mascot"`
	Abbreviation   *string  `json:"abbreviation"`
	AlternateNames []string `json:"alternate_names"`
	Color          *string  `json:"color"`
	AlternateColor *string  `json:"alternate_color"`
	Logos          []string `json:"logos"`
	Twitter        *string  `json:"twitter"`
}

// Conference is the staged and production form of a conference
type Conference struct {
	ConferenceID   int     `json:"conference_id" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Classification string  `json:"classification" validate:"required"`
	ShortName      *string `json:"short_name"`
	Abbreviation   *string `json:"abbreviation"`
}

// Venue is the staged and production form of a venue
type Venue struct {
	VenueID          int      `json:"venue_id" validate:"required"`
	Name             string   `json:"name" validate:"required"`
	City             *string  `json:"city"`
	State            *string  `json:"state"`
	Zip              *string  `json:"zip"`
	CountryCode      *string  `json:"country_code"`
	Timezone         *string  `json:"timezone"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Elevation        *string  `json:"elevation"`
	Capacity         *int     `json:"capacity"`
	ConstructionYear *int     `json:"construction_year"`
	Grass            *bool    `json:"grass"`
	Dome             *bool    `json:"dome"`
}

// Game is the staged and production form of a game
type Game struct {
	GameID         int     `json:"game_id" validate:"required"`
	Season         int     `json:"season" validate:"required"`
	Week           int     `json:"week"`
	SeasonType     string  `json:"season_type"`
	StartDate      *string `json:"start_date"`
	NeutralSite    *bool   `json:"neutral_site"`
	ConferenceGame *bool   `json:"conference_game"`
	VenueID        *int    `json:"venue_id"`
	HomeTeamID     int     `json:"home_team_id" validate:"required"`
	HomePoints     *int    `json:"home_points"`
	AwayTeamID     int     `json:"away_team_id" validate:"required"`
	AwayPoints     *int    `json:"away_points"`
}

// Raw source shapes. Field names follow the CFBD API.

type cfbdLocation struct {
	ID *int `json:"id"`
}

type cfbdTeam struct {
	ID             int          `json:"id"`
	Year           int          `json:"year"`
	School         string       `json:"school"`
	Mascot         *string      `json:"mascot"`
	Abbreviation   *string      `json:"abbreviation"`
	AlternateNames []string     `json:"alternateNames"`
	Conference     string       `json:"conference"`
	Division       *string      `json:"division"`
	Classification string       `json:"classification"`
	Color          *string      `json:"color"`
	AlternateColor *string      `json:"alternateColor"`
	Logos          []string     `json:"logos"`
	Twitter        *string      `json:"twitter"`
	Location       cfbdLocation `json:"location"`
}

type cfbdConference struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	ShortName      *string `json:"shortName"`
	Abbreviation   *string `json:"abbreviation"`
	Classification string  `json:"classification"`
}

type cfbdVenue struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	City             *string  `json:"city"`
	State            *string  `json:"state"`
	Zip              *string  `json:"zip"`
	CountryCode      *string  `json:"countryCode"`
	Timezone         *string  `json:"timezone"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Elevation        *string  `json:"elevation"`
	Capacity         *int     `json:"capacity"`
	ConstructionYear *int     `json:"constructionYear"`
	Grass            *bool    `json:"grass"`
	Dome             *bool    `json:"dome"`
}

type cfbdGame struct {
	ID             int     `json:"id"`
	Season         int     `json:"season"`
	Week           int     `json:"week"`
	SeasonType     string  `json:"seasonType"`
	StartDate      *string `json:"startDate"`
	NeutralSite    *bool   `json:"neutralSite"`
	ConferenceGame *bool   `json:"conferenceGame"`
	VenueID        *int    `json:"venueId"`
	HomeID         int     `json:"homeId"`
	HomePoints     *int    `json:"homePoints"`
	AwayID         int     `json:"awayId"`
	AwayPoints     *int    `json:"awayPoints"`
}

// decode reads a stored raw record into one of the cfbd shapes. A record of
// the wrong shape is a validation miss.
func decode(raw docstore.Document, v any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", etl.ErrValidationMiss, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", etl.ErrValidationMiss, err)
	}
	return nil
}

// toDocument validates an entity and renders it as a document.
func toDocument(entity any) (docstore.Document, error) {
	if err := validation.Struct(entity); err != nil {
		return nil, fmt.Errorf("%w: %v", etl.ErrValidationMiss, err)
	}
	b, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	doc := docstore.Document{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// documentOutcome maps a toDocument error: an entity that fails validation
// is skipped, anything else is fatal.
func documentOutcome(err error) etl.Outcome {
	if errors.Is(err, etl.ErrValidationMiss) {
		return etl.Skip("%v", err)
	}
	return etl.Fail(err)
}

// asInt reads a numeric field from a record decoded from JSON or built in code.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
