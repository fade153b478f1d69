package web

import (
	"errors"
	"net/http"

	"github.com/edvart/wotc-admin/internal/publish"
	"github.com/edvart/wotc-admin/internal/tally"
)

// handleDaily returns the active weekly set joined with its matches and teams.
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	dateKey := r.URL.Query().Get("dateKey")
	if dateKey == "" {
		dateKey = publish.LatestKey
	}

	daily, err := s.publisher.ActiveMatches(r.Context(), dateKey)
	if errors.Is(err, publish.ErrNoPublishedSet) {
		writeError(w, http.StatusNotFound, "No published daily set found")
		return
	}
	if err != nil {
		s.internalError(w, r, "get daily matches", err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

// handleStats returns the vote tallies for every match in a weekly set.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	dateKey := r.URL.Query().Get("dateKey")
	if dateKey == "" {
		writeError(w, http.StatusBadRequest, "dateKey parameter required")
		return
	}

	stats, err := s.tally.SetStats(r.Context(), dateKey)
	if err != nil {
		s.internalError(w, r, "get stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (s *Server) handleUserState(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	dateKey := r.URL.Query().Get("dateKey")
	if deviceID == "" || dateKey == "" {
		writeError(w, http.StatusBadRequest, "deviceId and dateKey required")
		return
	}

	summary, err := s.tally.Summary(r.Context(), deviceID, dateKey)
	if err != nil {
		s.internalError(w, r, "get user state", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handlePrediction records one step of a device's prediction.
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	var sub tally.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := s.tally.Submit(r.Context(), sub)
	if errors.Is(err, tally.ErrMissingFields) {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if err != nil {
		s.internalError(w, r, "save prediction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
