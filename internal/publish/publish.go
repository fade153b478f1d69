// Package publish decides which weekly set end users see.
//
// Exclusive publishes from this process are serialized, but the sweep over other
// sets and the write of the target set are separate store operations: another
// server instance publishing at the same time can still leave two sets published.
package publish

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/edvart/wotc-admin/internal/store"
	"github.com/sirupsen/logrus"
)

// LatestKey asks ResolveActiveSet for the newest published week.
const LatestKey = "latest"

// ErrNoPublishedSet is returned when no weekly set is published at all.
var ErrNoPublishedSet = errors.New("no published daily set found")

var weekKeyRegex = regexp.MustCompile(`^week-(\d+)$`)

// WeekKey returns the date key for week n.
func WeekKey(n int) string {
	return "week-" + strconv.Itoa(n)
}

// ParseWeekKey extracts n from "week-<n>".
func ParseWeekKey(key string) (int, bool) {
	m := weekKeyRegex.FindStringSubmatch(key)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Manager owns the published flag across weekly sets.
type Manager struct {
	store store.Store
	log   logrus.FieldLogger

	publishMu sync.Mutex
}

// NewManager creates a publication manager.
func NewManager(s store.Store, log logrus.FieldLogger) *Manager {
	return &Manager{store: s, log: log}
}

// SetWeeklySet writes a weekly set. When both published and exclusive are set,
// every other published set is demoted first, so afterwards at most one set is
// published (absent concurrent writers in other processes).
func (m *Manager) SetWeeklySet(ctx context.Context, dateKey string, matchIDs []string, published, exclusive bool) (*store.WeeklySet, error) {
	if err := store.ValidateDateKey(dateKey); err != nil {
		return nil, err
	}

	set := &store.WeeklySet{
		DateKey:   dateKey,
		MatchIDs:  append([]string{}, matchIDs...),
		Published: published,
	}

	if exclusive && published {
		m.publishMu.Lock()
		defer m.publishMu.Unlock()

		if err := m.demoteOthers(ctx, dateKey); err != nil {
			return nil, err
		}
	}

	if err := m.store.UpsertWeeklySet(ctx, set); err != nil {
		return nil, fmt.Errorf("save weekly set %s: %w", dateKey, err)
	}

	m.log.WithFields(logrus.Fields{
		"dateKey":   dateKey,
		"matches":   len(set.MatchIDs),
		"published": published,
		"exclusive": exclusive,
	}).Info("Weekly set saved")
	return set, nil
}

func (m *Manager) demoteOthers(ctx context.Context, keep string) error {
	sets, err := m.store.ListWeeklySets(ctx)
	if err != nil {
		return fmt.Errorf("exclusive publish %s: %w", keep, err)
	}
	for i := range sets {
		other := &sets[i]
		if other.DateKey == keep || !other.Published {
			continue
		}
		other.Published = false
		if err := m.store.UpsertWeeklySet(ctx, other); err != nil {
			return fmt.Errorf("unpublish %s: %w", other.DateKey, err)
		}
		m.log.WithField("dateKey", other.DateKey).Info("Unpublished weekly set")
	}
	return nil
}

// ResolveActiveSet returns the named set if it is published. Otherwise, and for
// LatestKey or an empty key, it returns the published week-<n> set with the
// largest n. Keys not shaped like week-<n> never win the fallback.
func (m *Manager) ResolveActiveSet(ctx context.Context, dateKey string) (*store.WeeklySet, error) {
	if dateKey != "" && dateKey != LatestKey {
		set, err := m.store.GetWeeklySet(ctx, dateKey)
		if err != nil {
			return nil, err
		}
		if set != nil && set.Published {
			return set, nil
		}
	}

	sets, err := m.store.ListWeeklySets(ctx)
	if err != nil {
		return nil, err
	}
	latest := latestPublished(sets)
	if latest == nil {
		return nil, ErrNoPublishedSet
	}
	return latest, nil
}

func latestPublished(sets []store.WeeklySet) *store.WeeklySet {
	type candidate struct {
		week int
		set  *store.WeeklySet
	}
	var published []candidate
	for i := range sets {
		if !sets[i].Published {
			continue
		}
		if n, ok := ParseWeekKey(sets[i].DateKey); ok {
			published = append(published, candidate{week: n, set: &sets[i]})
		}
	}
	if len(published) == 0 {
		return nil
	}
	sort.Slice(published, func(i, j int) bool {
		return published[i].week > published[j].week
	})
	return published[0].set
}

// TeamInfo is the public view of a team.
type TeamInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	LogoURL   string `json:"logoUrl"`
}

// MatchInfo is a match joined with both of its teams.
type MatchInfo struct {
	ID        string   `json:"id"`
	League    string   `json:"league"`
	KickoffAt string   `json:"kickoffAt"`
	HomeTeam  TeamInfo `json:"homeTeam"`
	AwayTeam  TeamInfo `json:"awayTeam"`
	AIText    *string  `json:"aiText"`
	Stadium   string   `json:"stadium,omitempty"`
}

// DailyMatches is what the mobile client renders for a week.
type DailyMatches struct {
	DateKey string      `json:"dateKey"`
	Matches []MatchInfo `json:"matches"`
}

// ActiveMatches resolves the active set for dateKey and joins its matches with
// their teams. Matches whose record or either team is missing are skipped.
func (m *Manager) ActiveMatches(ctx context.Context, dateKey string) (*DailyMatches, error) {
	set, err := m.ResolveActiveSet(ctx, dateKey)
	if err != nil {
		return nil, err
	}

	teams, err := m.store.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	teamsByID := make(map[string]store.Team, len(teams))
	for _, t := range teams {
		teamsByID[t.ID] = t
	}

	out := &DailyMatches{DateKey: set.DateKey, Matches: make([]MatchInfo, 0, len(set.MatchIDs))}
	for _, id := range set.MatchIDs {
		match, err := m.store.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		if match == nil {
			continue
		}
		home, okHome := teamsByID[match.HomeTeamID]
		away, okAway := teamsByID[match.AwayTeamID]
		if !okHome || !okAway {
			continue
		}
		out.Matches = append(out.Matches, MatchInfo{
			ID:        match.ID,
			League:    match.League,
			KickoffAt: match.KickoffAt,
			HomeTeam:  teamInfo(home),
			AwayTeam:  teamInfo(away),
			AIText:    match.AIText,
			Stadium:   match.Stadium,
		})
	}
	return out, nil
}

func teamInfo(t store.Team) TeamInfo {
	return TeamInfo{ID: t.ID, Name: t.Name, ShortName: t.ShortName, LogoURL: t.LogoURL}
}
