package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid marks a record that failed validation. Wrapped errors carry the field.
var ErrInvalid = errors.New("invalid")

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"shortName"`
	LogoURL   string    `json:"logoUrl"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the fields an admin must supply.
func (t *Team) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w team: id required", ErrInvalid)
	case t.Name == "":
		return fmt.Errorf("%w team: name required", ErrInvalid)
	case t.ShortName == "":
		return fmt.Errorf("%w team: shortName required", ErrInvalid)
	}
	return nil
}

type MatchStatus string

const (
	MatchStatusDraft     MatchStatus = "draft"
	MatchStatusPublished MatchStatus = "published"
	MatchStatusArchived  MatchStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusDraft, MatchStatusPublished, MatchStatusArchived:
		return true
	}
	return false
}

type Match struct {
	ID         string      `json:"id"`
	HomeTeamID string      `json:"homeTeamId"`
	AwayTeamID string      `json:"awayTeamId"`
	League     string      `json:"league"`
	KickoffAt  string      `json:"kickoffAt"` // ISO 8601
	Status     MatchStatus `json:"status"`
	AIText     *string     `json:"aiText"`
	Stadium    string      `json:"stadium,omitempty"`
	Week       int         `json:"week"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Validate checks the fields an admin must supply. ID is optional: an empty ID
// gets a fresh one on upsert.
func (m *Match) Validate() error {
	switch {
	case m.HomeTeamID == "":
		return fmt.Errorf("%w match: homeTeamId required", ErrInvalid)
	case m.AwayTeamID == "":
		return fmt.Errorf("%w match: awayTeamId required", ErrInvalid)
	case m.League == "":
		return fmt.Errorf("%w match: league required", ErrInvalid)
	case m.KickoffAt == "":
		return fmt.Errorf("%w match: kickoffAt required", ErrInvalid)
	case m.Status != "" && !m.Status.Valid():
		return fmt.Errorf("%w match: unknown status %q", ErrInvalid, m.Status)
	}
	return nil
}

// WeeklySet is an ordered selection of matches shown together, keyed by a
// date key such as "week-3". MatchIDs may repeat.
type WeeklySet struct {
	DateKey   string    `json:"dateKey"`
	MatchIDs  []string  `json:"matchIds"`
	Published bool      `json:"published"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidateDateKey rejects keys that cannot be stored or used as a URL path segment.
func ValidateDateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w weekly set: dateKey required", ErrInvalid)
	case strings.Contains(key, "/"):
		return fmt.Errorf("%w weekly set: dateKey %q must not contain '/'", ErrInvalid, key)
	}
	return nil
}

// Contains reports whether matchID is listed in the set.
func (ws *WeeklySet) Contains(matchID string) bool {
	for _, id := range ws.MatchIDs {
		if id == matchID {
			return true
		}
	}
	return false
}

// Pick values.
const (
	PickHome  = "1"
	PickDraw  = "X"
	PickAway  = "2"
	PickOver  = "over"
	PickUnder = "under"
)

// ValidResultPick reports whether p is a step-one pick.
func ValidResultPick(p string) bool {
	return p == PickHome || p == PickDraw || p == PickAway
}

// ValidOUPick reports whether p is a step-two pick.
func ValidOUPick(p string) bool {
	return p == PickOver || p == PickUnder
}

// UserPrediction is one device's two-step pick for a match. It only counts as
// answered once CompletedAt is set.
type UserPrediction struct {
	MatchID     string     `json:"matchId"`
	ResultPick  string     `json:"resultPick,omitempty"`
	OUPick      string     `json:"ouPick,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type UserState struct {
	DeviceID         string                                `json:"deviceId"`
	Tokens           int                                   `json:"tokens"`
	Predictions      map[string]map[string]*UserPrediction `json:"predictions"` // dateKey -> matchID
	UnlockedMatchIDs []string                              `json:"unlockedMatchIds"`
	CreatedAt        time.Time                             `json:"createdAt"`
	UpdatedAt        time.Time                             `json:"updatedAt"`
}

// Prediction returns the prediction for dateKey/matchID, creating empty entries as needed.
func (u *UserState) Prediction(dateKey, matchID string) *UserPrediction {
	if u.Predictions == nil {
		u.Predictions = make(map[string]map[string]*UserPrediction)
	}
	byMatch, ok := u.Predictions[dateKey]
	if !ok {
		byMatch = make(map[string]*UserPrediction)
		u.Predictions[dateKey] = byMatch
	}
	p, ok := byMatch[matchID]
	if !ok || p == nil {
		p = &UserPrediction{MatchID: matchID}
		byMatch[matchID] = p
	}
	return p
}

// AnsweredCount counts completed predictions for dateKey.
func (u *UserState) AnsweredCount(dateKey string) int {
	n := 0
	for _, p := range u.Predictions[dateKey] {
		if p != nil && p.CompletedAt != nil {
			n++
		}
	}
	return n
}

// MatchStats maps a pick value to its vote count.
type MatchStats map[string]int64

// Session is an authenticated admin session.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ResetTarget selects what Reset wipes.
type ResetTarget string

const (
	ResetMatches ResetTarget = "matches" // matches, weekly sets and stats
	ResetAll     ResetTarget = "all"     // the whole store
)

type Store interface {
	ListTeams(ctx context.Context) ([]Team, error)
	GetTeam(ctx context.Context, id string) (*Team, error)
	UpsertTeam(ctx context.Context, team *Team) error
	DeleteTeam(ctx context.Context, id string) error

	GetMatch(ctx context.Context, matchID string) (*Match, error)
	ListMatches(ctx context.Context) ([]Match, error)
	UpsertMatch(ctx context.Context, match *Match) (*Match, error)
	DeleteMatch(ctx context.Context, matchID string) error

	GetWeeklySet(ctx context.Context, dateKey string) (*WeeklySet, error)
	ListWeeklySets(ctx context.Context) ([]WeeklySet, error)
	UpsertWeeklySet(ctx context.Context, set *WeeklySet) error

	GetUserState(ctx context.Context, deviceID string) (*UserState, error)
	UpsertUserState(ctx context.Context, state *UserState) error
	InitializeUser(ctx context.Context, deviceID string) (*UserState, error)

	GetMatchStats(ctx context.Context, matchID string) (MatchStats, error)
	IncrementMatchStat(ctx context.Context, matchID, pick string) error

	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	Reset(ctx context.Context, target ResetTarget) error
}
