// Package tally records device predictions and the shared vote counts derived from them.
//
// Each (device, match, step) counts once for a given pick. Changing a pick counts
// the new value without removing the old vote, so tallies may exceed the number of
// devices that answered. Clients depend on those counts, so this is kept as is.
package tally

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edvart/wotc-admin/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrMissingFields is returned when a submission lacks deviceId, dateKey, matchId or step.
var ErrMissingFields = errors.New("missing required fields")

// Prediction steps.
const (
	StepResult    = 1
	StepOverUnder = 2
)

// Submission is one step of a device's prediction for a match.
type Submission struct {
	DeviceID   string `json:"deviceId"`
	DateKey    string `json:"dateKey"`
	MatchID    string `json:"matchId"`
	Step       int    `json:"step"`
	ResultPick string `json:"resultPick,omitempty"`
	OUPick     string `json:"ouPick,omitempty"`
}

// Summary is what a device sees about its own progress for a date.
type Summary struct {
	Tokens           int      `json:"tokens"`
	AnsweredCount    int      `json:"answeredCount"`
	UnlockedMatchIDs []string `json:"unlockedMatchIds"`
}

type Engine struct {
	store store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewEngine(s store.Store, log logrus.FieldLogger) *Engine {
	return &Engine{store: s, log: log, now: time.Now}
}

// Submit applies one prediction step. Unknown steps and picks outside the allowed
// values leave the prediction unchanged. The device's state is saved either way.
//
// The read and write of the device state are not atomic; two concurrent
// submissions for the same device may lose one of the stored picks. Vote counts
// are incremented atomically by the store and are never lost.
func (e *Engine) Submit(ctx context.Context, sub Submission) error {
	if sub.DeviceID == "" || sub.DateKey == "" || sub.MatchID == "" || sub.Step == 0 {
		return ErrMissingFields
	}

	state, err := e.store.InitializeUser(ctx, sub.DeviceID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", sub.DeviceID, err)
	}
	pred := state.Prediction(sub.DateKey, sub.MatchID)

	var counted string
	switch sub.Step {
	case StepResult:
		if store.ValidResultPick(sub.ResultPick) && pred.ResultPick != sub.ResultPick {
			pred.ResultPick = sub.ResultPick
			counted = sub.ResultPick
		}
	case StepOverUnder:
		if store.ValidOUPick(sub.OUPick) && pred.OUPick != sub.OUPick {
			pred.OUPick = sub.OUPick
			completed := e.now()
			pred.CompletedAt = &completed
			counted = sub.OUPick
		}
	}

	if counted != "" {
		if err := e.store.IncrementMatchStat(ctx, sub.MatchID, counted); err != nil {
			return err
		}
		e.log.WithFields(logrus.Fields{
			"deviceId": sub.DeviceID,
			"matchId":  sub.MatchID,
			"step":     sub.Step,
			"pick":     counted,
		}).Debug("Prediction counted")
	}

	if err := e.store.UpsertUserState(ctx, state); err != nil {
		return fmt.Errorf("save user %s: %w", sub.DeviceID, err)
	}
	return nil
}

// Summary returns the device's tokens, completed prediction count for dateKey and
// unlocked matches. A device seen for the first time is created.
func (e *Engine) Summary(ctx context.Context, deviceID, dateKey string) (*Summary, error) {
	if deviceID == "" || dateKey == "" {
		return nil, ErrMissingFields
	}
	state, err := e.store.InitializeUser(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", deviceID, err)
	}

	unlocked := state.UnlockedMatchIDs
	if unlocked == nil {
		unlocked = []string{}
	}
	return &Summary{
		Tokens:           state.Tokens,
		AnsweredCount:    state.AnsweredCount(dateKey),
		UnlockedMatchIDs: unlocked,
	}, nil
}

// SetStats returns the tallies of every match in the named weekly set. It does
// not fall back to another set; an unknown dateKey yields an empty map.
func (e *Engine) SetStats(ctx context.Context, dateKey string) (map[string]store.MatchStats, error) {
	if dateKey == "" {
		return nil, ErrMissingFields
	}
	stats := make(map[string]store.MatchStats)

	set, err := e.store.GetWeeklySet(ctx, dateKey)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return stats, nil
	}

	for _, id := range set.MatchIDs {
		if _, ok := stats[id]; ok {
			continue
		}
		s, err := e.store.GetMatchStats(ctx, id)
		if err != nil {
			return nil, err
		}
		stats[id] = s
	}
	return stats, nil
}
