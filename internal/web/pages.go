package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/edvart/wotc-admin/internal/auth"
	"github.com/edvart/wotc-admin/internal/publish"
	"github.com/edvart/wotc-admin/internal/store"
	"github.com/go-chi/chi/v5"
)

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.log.WithError(err).WithField("template", name).Error("Template error")
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.GetSession(r.Context(), r)
	if err != nil {
		s.log.WithError(err).Warn("Failed to look up session")
	}
	if session != nil {
		http.Redirect(w, r, "/admin", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", map[string]interface{}{})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	_, err := s.sessions.Login(r.Context(), w, r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidPassword) {
		s.log.WithField("remote", r.RemoteAddr).Warn("Admin login rejected")
		s.render(w, r, http.StatusUnauthorized, "login.html", map[string]interface{}{"Error": "Invalid password"})
		return
	}
	if err != nil {
		s.log.WithError(err).Error("Failed to create session")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleLogoutForm(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), w, r); err != nil {
		s.log.WithError(err).Error("Failed to delete session")
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleAdminPage renders the admin dashboard.
func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to list teams")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	matches, err := s.store.ListMatches(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to list matches")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	sets, err := s.store.ListWeeklySets(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to list weekly sets")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	sortMatches(matches)
	sortWeeklySets(sets)

	teamNames := make(map[string]string, len(teams))
	for _, t := range teams {
		teamNames[t.ID] = t.ShortName
	}

	s.render(w, r, http.StatusOK, "admin.html", map[string]interface{}{
		"Teams":     teams,
		"TeamNames": teamNames,
		"Matches":   matches,
		"Sets":      sets,
		"Message":   r.URL.Query().Get("msg"),
		"DevMode":   s.cfg.DevMode,
	})
}

// handleStatsPage renders vote percentages for the active set for dateKey.
func (s *Server) handleStatsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dateKey := r.URL.Query().Get("dateKey")
	if dateKey == "" {
		dateKey = publish.LatestKey
	}

	data := map[string]interface{}{
		"DateKey": dateKey,
		"Weeks":   weekOptions(52),
	}

	daily, err := s.publisher.ActiveMatches(ctx, dateKey)
	switch {
	case errors.Is(err, publish.ErrNoPublishedSet):
	case err != nil:
		s.log.WithError(err).Error("Failed to load active matches")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	default:
		stats, err := s.tally.SetStats(ctx, daily.DateKey)
		if err != nil {
			s.log.WithError(err).Error("Failed to load stats")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		data["Daily"] = daily
		data["Stats"] = stats
	}

	s.render(w, r, http.StatusOK, "stats.html", data)
}

// handlePublishForm publishes or unpublishes an existing weekly set from the dashboard.
func (s *Server) handlePublishForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dateKey := chi.URLParam(r, "dateKey")
	if r.URL.RawPath != "" {
		if k, err := url.PathUnescape(dateKey); err == nil {
			dateKey = k
		}
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	set, err := s.store.GetWeeklySet(ctx, dateKey)
	if err != nil {
		s.log.WithError(err).Error("Failed to load weekly set")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if set == nil {
		http.Error(w, "weekly set not found", http.StatusNotFound)
		return
	}

	published := r.PostFormValue("unpublish") == ""
	exclusive := r.PostFormValue("exclusive") != ""
	if _, err := s.publisher.SetWeeklySet(ctx, dateKey, set.MatchIDs, published, exclusive); err != nil {
		s.log.WithError(err).Error("Failed to save weekly set")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	msg := dateKey + " unpublished"
	if published {
		msg = dateKey + " published"
	}
	http.Redirect(w, r, "/admin?msg="+url.QueryEscape(msg), http.StatusSeeOther)
}

func weekOptions(n int) []string {
	weeks := make([]string, n)
	for i := range weeks {
		weeks[i] = publish.WeekKey(i + 1)
	}
	return weeks
}

// statTotal sums the counts for the given picks.
func statTotal(stats store.MatchStats, picks ...string) int64 {
	var total int64
	for _, p := range picks {
		total += stats[p]
	}
	return total
}
