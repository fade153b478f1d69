package publish

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/edvart/wotc-admin/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrNotEnoughTeams is returned by GenerateWeek when fewer than two teams exist.
var ErrNotEnoughTeams = errors.New("not enough teams to generate matches")

const (
	generatedLeague  = "Test League"
	generatedStadium = "Random Stadium"
	isoMillis        = "2006-01-02T15:04:05.000Z"
)

// GenerateOptions configures GenerateWeek.
type GenerateOptions struct {
	Week  int
	Count int

	// OnMatch, if set, is called after each match is saved.
	OnMatch func(*store.Match)
}

// GenerateWeek creates Count published matches between random pairs of distinct
// teams, kicking off tomorrow at 20:00, and appends them to week-<Week>, which
// is marked published. Other sets are not demoted.
func (m *Manager) GenerateWeek(ctx context.Context, opts GenerateOptions) ([]string, error) {
	if opts.Week <= 0 || opts.Count <= 0 {
		return nil, fmt.Errorf("%w generate: week and count required", store.ErrInvalid)
	}

	teams, err := m.store.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	if len(teams) < 2 {
		return nil, ErrNotEnoughTeams
	}

	now := time.Now()
	kickoff := time.Date(now.Year(), now.Month(), now.Day()+1, 20, 0, 0, 0, now.Location())

	matchIDs := make([]string, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		home := rand.Intn(len(teams))
		away := rand.Intn(len(teams) - 1)
		if away >= home {
			away++
		}

		match, err := m.store.UpsertMatch(ctx, &store.Match{
			HomeTeamID: teams[home].ID,
			AwayTeamID: teams[away].ID,
			League:     generatedLeague,
			KickoffAt:  kickoff.UTC().Format(isoMillis),
			Status:     store.MatchStatusPublished,
			Stadium:    generatedStadium,
			Week:       opts.Week,
		})
		if err != nil {
			return matchIDs, fmt.Errorf("generate match %d: %w", i+1, err)
		}
		matchIDs = append(matchIDs, match.ID)
		if opts.OnMatch != nil {
			opts.OnMatch(match)
		}
	}

	dateKey := WeekKey(opts.Week)
	set, err := m.store.GetWeeklySet(ctx, dateKey)
	if err != nil {
		return matchIDs, err
	}
	if set == nil {
		set = &store.WeeklySet{DateKey: dateKey}
	}
	set.MatchIDs = append(set.MatchIDs, matchIDs...)
	set.Published = true
	if err := m.store.UpsertWeeklySet(ctx, set); err != nil {
		return matchIDs, fmt.Errorf("save weekly set %s: %w", dateKey, err)
	}

	m.log.WithFields(logrus.Fields{
		"dateKey": dateKey,
		"count":   len(matchIDs),
	}).Info("Generated random matches")
	return matchIDs, nil
}
