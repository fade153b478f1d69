package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/edvart/wotc-admin/internal/kv"
)

// Key layout in the record store.
const (
	teamsKey          = "teams"
	matchPrefix       = "match:"
	dailyPrefix       = "daily:"
	userPrefix        = "user:"
	matchStatsPrefix  = "match_stats:"
	sessionPrefix     = "session:"
	matchIDCounterKey = "match_id_counter"
)

// KVStore implements Store on top of a kv.Store. No operation spanning more than one
// key is transactional.
type KVStore struct {
	kv  kv.Store
	now func() time.Time
}

// NewKVStore creates a repository over the given record store.
func NewKVStore(records kv.Store) *KVStore {
	return &KVStore{kv: records, now: time.Now}
}

func (s *KVStore) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *KVStore) putJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// ListTeams returns every team in stored order.
func (s *KVStore) ListTeams(ctx context.Context) ([]Team, error) {
	var teams []Team
	if _, err := s.getJSON(ctx, teamsKey, &teams); err != nil {
		return nil, err
	}
	if teams == nil {
		teams = []Team{}
	}
	return teams, nil
}

// GetTeam returns the team with the given id, or nil.
func (s *KVStore) GetTeam(ctx context.Context, id string) (*Team, error) {
	teams, err := s.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		if teams[i].ID == id {
			return &teams[i], nil
		}
	}
	return nil, nil
}

// UpsertTeam replaces the team with the same id, or appends it.
func (s *KVStore) UpsertTeam(ctx context.Context, team *Team) error {
	if err := team.Validate(); err != nil {
		return err
	}
	teams, err := s.ListTeams(ctx)
	if err != nil {
		return err
	}

	team.UpdatedAt = s.now()
	replaced := false
	for i := range teams {
		if teams[i].ID == team.ID {
			teams[i] = *team
			replaced = true
			break
		}
	}
	if !replaced {
		teams = append(teams, *team)
	}
	return s.putJSON(ctx, teamsKey, teams)
}

// DeleteTeam removes a team. Matches referencing it are left alone.
func (s *KVStore) DeleteTeam(ctx context.Context, id string) error {
	teams, err := s.ListTeams(ctx)
	if err != nil {
		return err
	}
	kept := teams[:0]
	for _, t := range teams {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if kept == nil {
		kept = []Team{}
	}
	return s.putJSON(ctx, teamsKey, kept)
}

// GetMatch returns a match by ID, or nil.
func (s *KVStore) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	var m Match
	ok, err := s.getJSON(ctx, matchPrefix+matchID, &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

// ListMatches scans every stored match, unordered.
func (s *KVStore) ListMatches(ctx context.Context) ([]Match, error) {
	keys, err := s.kv.Keys(ctx, matchPrefix)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	matches := make([]Match, 0, len(keys))
	for _, key := range keys {
		var m Match
		ok, err := s.getJSON(ctx, key, &m)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// NextMatchID draws a fresh sequential match ID from the shared counter.
func (s *KVStore) NextMatchID(ctx context.Context) (string, error) {
	id, err := s.kv.Incr(ctx, matchIDCounterKey)
	if err != nil {
		return "", fmt.Errorf("next match id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// UpsertMatch saves a match. An empty ID gets a fresh sequential one; an existing
// match keeps its original CreatedAt and has every other field replaced.
func (s *KVStore) UpsertMatch(ctx context.Context, match *Match) (*Match, error) {
	if err := match.Validate(); err != nil {
		return nil, err
	}

	saved := *match
	if saved.ID == "" {
		id, err := s.NextMatchID(ctx)
		if err != nil {
			return nil, err
		}
		saved.ID = id
	}
	if saved.Status == "" {
		saved.Status = MatchStatusDraft
	}
	if saved.Week <= 0 {
		saved.Week = 1
	}

	existing, err := s.GetMatch(ctx, saved.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	saved.CreatedAt = now
	if existing != nil && !existing.CreatedAt.IsZero() {
		saved.CreatedAt = existing.CreatedAt
	}
	saved.UpdatedAt = now

	if err := s.putJSON(ctx, matchPrefix+saved.ID, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteMatch removes a match and strips its ID from every weekly set. Only sets
// that change are rewritten. Its vote tallies are kept.
func (s *KVStore) DeleteMatch(ctx context.Context, matchID string) error {
	sets, err := s.ListWeeklySets(ctx)
	if err != nil {
		return err
	}

	for i := range sets {
		set := &sets[i]
		if !set.Contains(matchID) {
			continue
		}
		kept := make([]string, 0, len(set.MatchIDs))
		for _, id := range set.MatchIDs {
			if id != matchID {
				kept = append(kept, id)
			}
		}
		set.MatchIDs = kept
		if err := s.UpsertWeeklySet(ctx, set); err != nil {
			return fmt.Errorf("remove match %s from %s: %w", matchID, set.DateKey, err)
		}
	}

	if err := s.kv.Delete(ctx, matchPrefix+matchID); err != nil {
		return fmt.Errorf("delete match %s: %w", matchID, err)
	}
	return nil
}

// GetWeeklySet returns the set stored under dateKey, or nil.
func (s *KVStore) GetWeeklySet(ctx context.Context, dateKey string) (*WeeklySet, error) {
	var ws WeeklySet
	ok, err := s.getJSON(ctx, dailyPrefix+dateKey, &ws)
	if err != nil || !ok {
		return nil, err
	}
	return &ws, nil
}

// ListWeeklySets scans every stored set, unordered.
func (s *KVStore) ListWeeklySets(ctx context.Context) ([]WeeklySet, error) {
	keys, err := s.kv.Keys(ctx, dailyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list weekly sets: %w", err)
	}

	sets := make([]WeeklySet, 0, len(keys))
	for _, key := range keys {
		var ws WeeklySet
		ok, err := s.getJSON(ctx, key, &ws)
		if err != nil {
			return nil, err
		}
		if ok {
			sets = append(sets, ws)
		}
	}
	return sets, nil
}

// UpsertWeeklySet overwrites the set stored under set.DateKey.
func (s *KVStore) UpsertWeeklySet(ctx context.Context, set *WeeklySet) error {
	if err := ValidateDateKey(set.DateKey); err != nil {
		return err
	}
	if set.MatchIDs == nil {
		set.MatchIDs = []string{}
	}
	set.UpdatedAt = s.now()
	return s.putJSON(ctx, dailyPrefix+set.DateKey, set)
}

// GetUserState returns the state for a device, or nil if it has never been seen.
func (s *KVStore) GetUserState(ctx context.Context, deviceID string) (*UserState, error) {
	var u UserState
	ok, err := s.getJSON(ctx, userPrefix+deviceID, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

// UpsertUserState saves a device's state, keeping the CreatedAt of any stored copy.
func (s *KVStore) UpsertUserState(ctx context.Context, state *UserState) error {
	existing, err := s.GetUserState(ctx, state.DeviceID)
	if err != nil {
		return err
	}

	now := s.now()
	if existing != nil && !existing.CreatedAt.IsZero() {
		state.CreatedAt = existing.CreatedAt
	} else if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now
	return s.putJSON(ctx, userPrefix+state.DeviceID, state)
}

// InitializeUser returns the stored state for a device, creating an empty one first if needed.
func (s *KVStore) InitializeUser(ctx context.Context, deviceID string) (*UserState, error) {
	existing, err := s.GetUserState(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	state := &UserState{
		DeviceID:         deviceID,
		Predictions:      make(map[string]map[string]*UserPrediction),
		UnlockedMatchIDs: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.UpsertUserState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// GetMatchStats returns the vote tallies for a match.
func (s *KVStore) GetMatchStats(ctx context.Context, matchID string) (MatchStats, error) {
	fields, err := s.kv.HGetAll(ctx, matchStatsPrefix+matchID)
	if err != nil {
		return nil, fmt.Errorf("get stats %s: %w", matchID, err)
	}
	return MatchStats(fields), nil
}

// IncrementMatchStat atomically adds one vote for pick on a match.
func (s *KVStore) IncrementMatchStat(ctx context.Context, matchID, pick string) error {
	if _, err := s.kv.HIncrBy(ctx, matchStatsPrefix+matchID, pick, 1); err != nil {
		return fmt.Errorf("increment stats %s/%s: %w", matchID, pick, err)
	}
	return nil
}

// CreateSession stores a new admin session.
func (s *KVStore) CreateSession(ctx context.Context, session *Session) error {
	return s.putJSON(ctx, sessionPrefix+session.ID, session)
}

// GetSession returns a live session, or nil if it is missing or expired.
func (s *KVStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	ok, err := s.getJSON(ctx, sessionPrefix+sessionID, &session)
	if err != nil || !ok {
		return nil, err
	}
	if !session.ExpiresAt.After(s.now()) {
		if err := s.kv.Delete(ctx, sessionPrefix+sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &session, nil
}

// DeleteSession removes a session.
func (s *KVStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.kv.Delete(ctx, sessionPrefix+sessionID)
}

// Reset wipes records and zeroes the match ID counter.
func (s *KVStore) Reset(ctx context.Context, target ResetTarget) error {
	var prefixes []string
	switch target {
	case ResetMatches:
		prefixes = []string{matchPrefix, dailyPrefix, matchStatsPrefix}
	case ResetAll:
		prefixes = []string{""}
	default:
		return fmt.Errorf("%w reset target %q", ErrInvalid, target)
	}

	var keys []string
	for _, p := range prefixes {
		found, err := s.kv.Keys(ctx, p)
		if err != nil {
			return fmt.Errorf("reset %s: %w", target, err)
		}
		keys = append(keys, found...)
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("reset %s: %w", target, err)
	}
	return s.kv.Set(ctx, matchIDCounterKey, []byte("0"))
}
