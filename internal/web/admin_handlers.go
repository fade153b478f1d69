package web

import (
	"errors"
	"net/http"
	"sort"

	"github.com/edvart/wotc-admin/internal/auth"
	"github.com/edvart/wotc-admin/internal/publish"
	"github.com/edvart/wotc-admin/internal/store"
)

// handleLogin checks the admin password and starts a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Password required")
		return
	}

	if _, err := s.sessions.Login(r.Context(), w, body.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.log.WithField("remote", r.RemoteAddr).Warn("Admin login rejected")
			writeError(w, http.StatusUnauthorized, "Invalid password")
			return
		}
		s.internalError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), w, r); err != nil {
		s.internalError(w, r, "logout", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(r.Context())
	if err != nil {
		s.internalError(w, r, "list teams", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

type teamInput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	LogoURL   string `json:"logoUrl"`
}

// handleTeamAction upserts a team, or deletes one when action is "delete".
func (s *Server) handleTeamAction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string     `json:"action"`
		ID     string     `json:"id"`
		Team   *teamInput `json:"team"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Action == "delete" {
		if body.ID == "" {
			writeError(w, http.StatusBadRequest, "ID required")
			return
		}
		if err := s.store.DeleteTeam(r.Context(), body.ID); err != nil {
			s.internalError(w, r, "delete team", err)
			return
		}
		s.log.WithField("teamId", body.ID).Info("Team deleted")
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	if body.Team == nil {
		writeError(w, http.StatusBadRequest, "Invalid team data")
		return
	}
	team := store.Team{
		ID:        body.Team.ID,
		Name:      body.Team.Name,
		ShortName: body.Team.ShortName,
		LogoURL:   body.Team.LogoURL,
	}
	if err := s.store.UpsertTeam(r.Context(), &team); err != nil {
		s.storeError(w, r, "save team", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "team": team})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.store.ListMatches(r.Context())
	if err != nil {
		s.internalError(w, r, "list matches", err)
		return
	}
	sortMatches(matches)
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// matchInput is the admin form payload for a match. Week may arrive as a string.
type matchInput struct {
	ID         string            `json:"id"`
	HomeTeamID string            `json:"homeTeamId"`
	AwayTeamID string            `json:"awayTeamId"`
	League     string            `json:"league"`
	KickoffAt  string            `json:"kickoffAt"`
	Status     store.MatchStatus `json:"status"`
	AIText     string            `json:"aiText"`
	Stadium    string            `json:"stadium"`
	Week       flexInt           `json:"week"`
}

func (in *matchInput) toMatch() *store.Match {
	m := &store.Match{
		ID:         in.ID,
		HomeTeamID: in.HomeTeamID,
		AwayTeamID: in.AwayTeamID,
		League:     in.League,
		KickoffAt:  in.KickoffAt,
		Status:     in.Status,
		Stadium:    in.Stadium,
		Week:       int(in.Week),
	}
	if in.AIText != "" {
		text := in.AIText
		m.AIText = &text
	}
	return m
}

// handleMatchAction upserts a match, or deletes one when action is "delete".
func (s *Server) handleMatchAction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string      `json:"action"`
		ID     string      `json:"id"`
		Match  *matchInput `json:"match"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Action == "delete" {
		if body.ID == "" {
			writeError(w, http.StatusBadRequest, "ID required")
			return
		}
		if err := s.store.DeleteMatch(r.Context(), body.ID); err != nil {
			s.internalError(w, r, "delete match", err)
			return
		}
		s.log.WithField("matchId", body.ID).Info("Match deleted")
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	if body.Match == nil {
		writeError(w, http.StatusBadRequest, "Invalid match data")
		return
	}
	saved, err := s.store.UpsertMatch(r.Context(), body.Match.toMatch())
	if err != nil {
		s.storeError(w, r, "save match", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "match": saved})
}

// handleGetDaily returns one weekly set when dateKey is given, otherwise all of them.
func (s *Server) handleGetDaily(w http.ResponseWriter, r *http.Request) {
	if dateKey := r.URL.Query().Get("dateKey"); dateKey != "" {
		set, err := s.store.GetWeeklySet(r.Context(), dateKey)
		if err != nil {
			s.internalError(w, r, "get weekly set", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"dailySet": set})
		return
	}

	sets, err := s.store.ListWeeklySets(r.Context())
	if err != nil {
		s.internalError(w, r, "list weekly sets", err)
		return
	}
	sortWeeklySets(sets)
	writeJSON(w, http.StatusOK, map[string]interface{}{"dailySets": sets})
}

// handleSetDaily saves a weekly set, optionally unpublishing every other set.
func (s *Server) handleSetDaily(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DateKey   string   `json:"dateKey"`
		MatchIDs  []string `json:"matchIds"`
		Published bool     `json:"published"`
		Exclusive bool     `json:"exclusive"`
	}
	if err := decodeJSON(w, r, &body); err != nil || body.DateKey == "" || body.MatchIDs == nil {
		writeError(w, http.StatusBadRequest, "Invalid daily set data")
		return
	}

	set, err := s.publisher.SetWeeklySet(r.Context(), body.DateKey, body.MatchIDs, body.Published, body.Exclusive)
	if err != nil {
		s.storeError(w, r, "save weekly set", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "dailySet": set})
}

// handleGenerate creates random matches for a week.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Week  flexInt `json:"week"`
		Count flexInt `json:"count"`
	}
	if err := decodeJSON(w, r, &body); err != nil || body.Week <= 0 || body.Count <= 0 {
		writeError(w, http.StatusBadRequest, "Week and count required")
		return
	}

	ids, err := s.publisher.GenerateWeek(r.Context(), publish.GenerateOptions{
		Week:  int(body.Week),
		Count: int(body.Count),
	})
	if errors.Is(err, publish.ErrNotEnoughTeams) {
		writeError(w, http.StatusBadRequest, "Not enough teams to generate matches")
		return
	}
	if err != nil {
		s.storeError(w, r, "generate matches", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(ids), "matchIds": ids})
}

// handleUploadLogo stores a multipart "file" and returns its public URL.
func (s *Server) handleUploadLogo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := s.uploader.Upload(r.Context(), header.Filename, contentType, file)
	if err != nil {
		s.internalError(w, r, "upload logo", err)
		return
	}
	s.log.WithField("url", url).Info("Logo uploaded")
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleReset wipes matches, weekly sets and tallies, or the whole store.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	target := store.ResetTarget(r.URL.Query().Get("target"))
	if target != store.ResetMatches && target != store.ResetAll {
		writeError(w, http.StatusBadRequest, "Invalid target. Use ?target=matches or ?target=all")
		return
	}

	if err := s.store.Reset(r.Context(), target); err != nil {
		s.internalError(w, r, "reset", err)
		return
	}
	s.log.WithField("target", target).Warn("Store reset")

	msg := "Matches, Daily Sets, and Stats deleted"
	if target == store.ResetAll {
		msg = "Full database flushed"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// sortMatches orders matches by week, then kickoff, then id.
func sortMatches(matches []store.Match) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		if a.KickoffAt != b.KickoffAt {
			return a.KickoffAt < b.KickoffAt
		}
		return a.ID < b.ID
	})
}

// sortWeeklySets puts week-<n> sets first in week order, then any other keys by name.
func sortWeeklySets(sets []store.WeeklySet) {
	sort.Slice(sets, func(i, j int) bool {
		ni, iok := publish.ParseWeekKey(sets[i].DateKey)
		nj, jok := publish.ParseWeekKey(sets[j].DateKey)
		switch {
		case iok && jok:
			return ni < nj
		case iok != jok:
			return iok
		}
		return sets[i].DateKey < sets[j].DateKey
	})
}
