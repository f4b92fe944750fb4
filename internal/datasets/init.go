package datasets

import (
	"context"
	"slices"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/etl"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/validation"
)

var teamMandatoryFields = []string{"id", "year", "school", "conference", "classification", "location"}

// InitDataset seeds teams with their conferences and venues.
type InitDataset struct {
	classifications []string
	replace         bool
	deps            []etl.ExtractionUnit
	logger          ectologger.Logger
}

// NewInitDataset creates the team/conference/venue transform-load unit
func NewInitDataset(s Settings, teams, conferences, venues etl.ExtractionUnit, logger ectologger.Logger) *InitDataset {
	return &InitDataset{
		classifications: s.Classifications,
		replace:         s.ReplaceProduction,
		deps:            []etl.ExtractionUnit{teams, conferences, venues},
		logger:          logger,
	}
}

// Name returns the unit name
func (d *InitDataset) Name() string {
	return "init"
}

// Dependencies returns the team, conference and venue extractions
func (d *InitDataset) Dependencies() []etl.ExtractionUnit {
	return d.deps
}

// Transform stages a Team and TeamExt for every valid extracted team
func (d *InitDataset) Transform(ctx context.Context, store docstore.Store) error {
	ctx, span := tracing.StartSpan(ctx, "datasets.InitDataset.Transform")
	defer span.End()

	raws, err := store.Find(ctx, docstore.Extraction(CollectionTeam), docstore.Query{})
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Error("Failed to read extracted teams")
		return err
	}

	counts := map[etl.OutcomeKind]int{}
	for _, raw := range raws {
		outcome := d.transformTeam(ctx, store, raw)
		counts[outcome.Kind]++
		metrics.RecordTransformed(d.Name(), outcome.Kind.String())

		log := d.logger.WithContext(ctx).WithField("school", raw["school"])
		switch {
		case outcome.IsFatal():
			log.WithError(outcome.Err).Error("Failed to transform team")
			return outcome.Err
		case outcome.IsSkipped():
			log.WithField("reason", outcome.Reason).Warn("Skipping team")
		}
	}

	d.logger.WithContext(ctx).WithFields(map[string]any{
		"transformed": counts[etl.OutcomeSuccess],
		"skipped":     counts[etl.OutcomeSkipped],
	}).Infof("Transformed %d of %d teams", counts[etl.OutcomeSuccess], len(raws))
	return nil
}

func (d *InitDataset) transformTeam(ctx context.Context, store docstore.Store, raw docstore.Document) etl.Outcome {
	if missing := validation.MissingFields(raw, teamMandatoryFields...); len(missing) > 0 {
		return etl.Skip("missing mandatory fields %v", missing)
	}

	var src cfbdTeam
	if err := decode(raw, &src); err != nil {
		return etl.Skip("%v", err)
	}
	if !slices.Contains(d.classifications, src.Classification) {
		return etl.Skip("classification %q is not selected", src.Classification)
	}

	conference, outcome := etl.GetOrCreate(ctx, store, conferenceReference(src.Conference, src.Classification))
	if outcome.IsFatal() {
		return outcome
	}
	if outcome.IsSkipped() {
		return etl.Skip("no conference: %s", outcome.Reason)
	}
	conferenceID, ok := asInt(conference["conference_id"])
	if !ok {
		return etl.Skip("conference %q has no id", src.Conference)
	}

	team := Team{
		TeamID:         src.ID,
		Year:           src.Year,
		School:         src.School,
		ConferenceID:   conferenceID,
		Classification: src.Classification,
		Division:       src.Division,
	}

	if src.Location.ID != nil {
		venue, outcome := etl.GetOrCreate(ctx, store, venueReference(*src.Location.ID))
		if outcome.IsFatal() {
			return outcome
		}
		if id, ok := asInt(venue["venue_id"]); ok {
			team.VenueID = &id
		} else {
			d.logger.WithContext(ctx).WithField("reason", outcome.Reason).Warnf("%s has no venue", src.School)
		}
	} else {
		d.logger.WithContext(ctx).Warnf("%s has no venue", src.School)
	}

	teamDoc, err := toDocument(team)
	if err != nil {
		return documentOutcome(err)
	}
	ext := TeamExt{
		TeamID:         src.ID,
		Year:           src.Year,
		Mascot:         src.Mascot,
		Abbreviation:   src.Abbreviation,
		AlternateNames: src.AlternateNames,
		Color:          src.Color,
		AlternateColor: src.AlternateColor,
		Logos:          src.Logos,
		Twitter:        src.Twitter,
	}
	extDoc, err := toDocument(ext)
	if err != nil {
		return documentOutcome(err)
	}

	key := docstore.Query{"year": src.Year, "team_id": src.ID}
	if err := store.UpsertByQuery(ctx, docstore.Staging(CollectionTeam), key, teamDoc); err != nil {
		return etl.Fail(err)
	}
	if err := store.UpsertByQuery(ctx, docstore.Staging(CollectionTeamExt), key, extDoc); err != nil {
		return etl.Fail(err)
	}
	return etl.Success()
}

func conferenceReference(name, classification string) etl.Reference {
	return etl.Reference{
		Entity:          CollectionConference,
		Staging:         docstore.Staging(CollectionConference),
		StagingQuery:    docstore.Query{"name": name},
		Extraction:      docstore.Extraction(CollectionConference),
		ExtractionQuery: docstore.Query{"name": name, "classification": classification},
		Required:        []string{"id", "name", "classification"},
		Build: func(raw docstore.Document) (docstore.Document, docstore.Query, error) {
			var src cfbdConference
			if err := decode(raw, &src); err != nil {
				return nil, nil, err
			}
			doc, err := toDocument(Conference{
				ConferenceID:   src.ID,
				Name:           src.Name,
				Classification: src.Classification,
				ShortName:      src.ShortName,
				Abbreviation:   src.Abbreviation,
			})
			if err != nil {
				return nil, nil, err
			}
			return doc, docstore.Query{"conference_id": src.ID}, nil
		},
	}
}

func venueReference(id int) etl.Reference {
	return etl.Reference{
		Entity:          CollectionVenue,
		Staging:         docstore.Staging(CollectionVenue),
		StagingQuery:    docstore.Query{"venue_id": id},
		Extraction:      docstore.Extraction(CollectionVenue),
		ExtractionQuery: docstore.Query{"id": id},
		Required:        []string{"id", "name"},
		Build: func(raw docstore.Document) (docstore.Document, docstore.Query, error) {
			var src cfbdVenue
			if err := decode(raw, &src); err != nil {
				return nil, nil, err
			}
			doc, err := toDocument(Venue{
				VenueID:          src.ID,
				Name:             src.Name,
				City:             src.City,
				State:            src.State,
				Zip:              src.Zip,
				CountryCode:      src.CountryCode,
				Timezone:         src.Timezone,
				Latitude:         src.Latitude,
				Longitude:        src.Longitude,
				Elevation:        src.Elevation,
				Capacity:         src.Capacity,
				ConstructionYear: src.ConstructionYear,
				Grass:            src.Grass,
				Dome:             src.Dome,
			})
			if err != nil {
				return nil, nil, err
			}
			return doc, docstore.Query{"venue_id": src.ID}, nil
		},
	}
}

// Load merges the staged teams, conferences and venues into production
func (d *InitDataset) Load(ctx context.Context, store docstore.Store) etl.LoadReport {
	ctx, span := tracing.StartSpan(ctx, "datasets.InitDataset.Load")
	defer span.End()

	var report etl.LoadReport
	for _, l := range []struct {
		collection string
		key        etl.KeyFunc
	}{
		{CollectionTeam, etl.FieldKey("year", "team_id")},
		{CollectionTeamExt, etl.FieldKey("year", "team_id")},
		{CollectionConference, etl.FieldKey("conference_id")},
		{CollectionVenue, etl.FieldKey("venue_id")},
	} {
		report.Add(etl.LoadNamespace(ctx, store, d.logger, docstore.Staging(l.collection), docstore.Production(l.collection), l.key, d.replace))
	}
	return report
}

// Cleanup empties the staging collections this unit writes
func (d *InitDataset) Cleanup(ctx context.Context, store docstore.Store) error {
	return etl.CleanupNamespaces(ctx, store, d.logger,
		docstore.Staging(CollectionTeam),
		docstore.Staging(CollectionTeamExt),
		docstore.Staging(CollectionConference),
		docstore.Staging(CollectionVenue),
	)
}
