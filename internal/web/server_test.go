package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edvart/wotc-admin/internal/auth"
	"github.com/edvart/wotc-admin/internal/blob"
	"github.com/edvart/wotc-admin/internal/kv"
	"github.com/edvart/wotc-admin/internal/publish"
	"github.com/edvart/wotc-admin/internal/store"
	"github.com/edvart/wotc-admin/internal/tally"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const testPassword = "letmein"

type testEnv struct {
	handler http.Handler
	store   store.Store
	cookie  *http.Cookie
	logs    *test.Hook
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith is newTestEnv with the entity store passed through wrap.
func newTestEnvWith(t *testing.T, wrap func(store.Store) store.Store) *testEnv {
	t.Helper()
	records, err := kv.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to open record store: %v", err)
	}
	t.Cleanup(func() { records.Close() })

	logger, hook := test.NewNullLogger()
	var s store.Store = store.NewKVStore(records)
	if wrap != nil {
		s = wrap(s)
	}

	uploadDir := filepath.Join(t.TempDir(), "uploads")
	uploader, err := blob.NewDirUploader(uploadDir, "/uploads")
	if err != nil {
		t.Fatalf("NewDirUploader: %v", err)
	}

	templates, err := DefaultTemplates()
	if err != nil {
		t.Fatalf("DefaultTemplates: %v", err)
	}

	srv := NewServer(
		s,
		publish.NewManager(s, logger),
		tally.NewEngine(s, logger),
		auth.NewSessionManager(s, testPassword, false),
		uploader,
		templates,
		logger,
		Config{UploadDir: uploadDir},
	)
	env := &testEnv{handler: srv, store: s, logs: hook}

	rec := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("Login: status %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			env.cookie = c
		}
	}
	if env.cookie == nil {
		t.Fatal("Login did not set a session cookie")
	}
	return env
}

// do sends a JSON request, with the admin cookie for /api/admin paths.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.cookie != nil && (strings.HasPrefix(path, "/api/admin") || strings.HasPrefix(path, "/admin")) {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

// seed creates three teams and n matches and returns the match ids.
func (e *testEnv) seed(t *testing.T, n int) []string {
	t.Helper()
	for _, team := range []map[string]string{
		{"id": "gs", "name": "Galatasaray", "shortName": "GS"},
		{"id": "fb", "name": "Fenerbahce", "shortName": "FB"},
		{"id": "bjk", "name": "Besiktas", "shortName": "BJK"},
	} {
		expectStatus(t, e.do(t, http.MethodPost, "/api/admin/teams", map[string]interface{}{"team": team}), http.StatusOK)
	}

	var ids []string
	for i := 0; i < n; i++ {
		rec := e.do(t, http.MethodPost, "/api/admin/matches", map[string]interface{}{
			"match": map[string]interface{}{
				"homeTeamId": "gs",
				"awayTeamId": "fb",
				"league":     "Super Lig",
				"kickoffAt":  "2026-10-18T17:00:00.000Z",
				"week":       "1",
			},
		})
		expectStatus(t, rec, http.StatusOK)
		var resp struct {
			Match store.Match `json:"match"`
		}
		decode(t, rec, &resp)
		ids = append(ids, resp.Match.ID)
	}
	return ids
}

func TestAdminRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	env.cookie = nil

	for _, path := range []string{"/api/admin/teams", "/api/admin/matches", "/api/admin/daily"} {
		rec := env.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: status = %d, want 401", path, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/admin/reset?target=all", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST reset: status = %d, want 401", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"password": "nope"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(t, http.MethodPost, "/api/admin/login", map[string]string{})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/logout", nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/admin/teams", nil), http.StatusUnauthorized)
}

func TestTeamsCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/teams", nil)
	expectStatus(t, rec, http.StatusOK)
	if body := strings.TrimSpace(rec.Body.String()); body != `{"teams":[]}` {
		t.Errorf("Empty teams body = %s", body)
	}

	env.seed(t, 0)

	rec = env.do(t, http.MethodPost, "/api/admin/teams", map[string]interface{}{
		"team": map[string]string{"id": "ts", "name": "Trabzonspor"},
	})
	expectStatus(t, rec, http.StatusBadRequest)

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/teams", map[string]interface{}{
		"team": map[string]string{"id": "gs", "name": "Galatasaray SK", "shortName": "GS", "logoUrl": "/uploads/gs.png"},
	}), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/teams", map[string]string{"action": "delete", "id": "bjk"}), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/teams", map[string]string{"action": "delete"}), http.StatusBadRequest)

	rec = env.do(t, http.MethodGet, "/api/admin/teams", nil)
	expectStatus(t, rec, http.StatusOK)
	var resp struct {
		Teams []store.Team `json:"teams"`
	}
	decode(t, rec, &resp)
	if len(resp.Teams) != 2 {
		t.Fatalf("Teams = %+v, want 2", resp.Teams)
	}
	if resp.Teams[0].ID != "gs" || resp.Teams[0].Name != "Galatasaray SK" || resp.Teams[0].LogoURL != "/uploads/gs.png" {
		t.Errorf("Team not replaced in place: %+v", resp.Teams[0])
	}
}

func TestMatchesCRUD(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seed(t, 2)
	if ids[0] != "1" || ids[1] != "2" {
		t.Fatalf("Match ids = %v, want [1 2]", ids)
	}

	rec := env.do(t, http.MethodPost, "/api/admin/matches", map[string]interface{}{
		"match": map[string]interface{}{"homeTeamId": "gs", "awayTeamId": "fb", "league": "Super Lig"},
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, "/api/admin/matches", map[string]interface{}{
		"match": map[string]interface{}{
			"id": "1", "homeTeamId": "fb", "awayTeamId": "gs", "league": "Cup",
			"kickoffAt": "2026-10-19T17:00:00.000Z", "week": 3, "status": "published", "aiText": "Close one",
		},
	})
	expectStatus(t, rec, http.StatusOK)

	match, err := env.store.GetMatch(context.Background(), "1")
	if err != nil || match == nil {
		t.Fatalf("GetMatch = %v, %v", match, err)
	}
	if match.Week != 3 || match.Status != store.MatchStatusPublished || match.AIText == nil || *match.AIText != "Close one" {
		t.Errorf("Unexpected match %+v", match)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/matches", nil)
	var list struct {
		Matches []store.Match `json:"matches"`
	}
	decode(t, rec, &list)
	if len(list.Matches) != 2 || list.Matches[0].ID != "2" {
		t.Errorf("Matches = %+v, want week order [2 1]", list.Matches)
	}
}

func TestDeleteMatchCascades(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seed(t, 2)

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "week-1", "matchIds": ids, "published": true,
	}), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/public/prediction", map[string]interface{}{
		"deviceId": "d1", "dateKey": "week-1", "matchId": ids[0], "step": 1, "resultPick": "1",
	}), http.StatusOK)

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/matches", map[string]string{"action": "delete", "id": ids[0]}), http.StatusOK)

	rec := env.do(t, http.MethodGet, "/api/admin/daily?dateKey=week-1", nil)
	var resp struct {
		DailySet store.WeeklySet `json:"dailySet"`
	}
	decode(t, rec, &resp)
	if len(resp.DailySet.MatchIDs) != 1 || resp.DailySet.MatchIDs[0] != ids[1] {
		t.Errorf("MatchIDs = %v, want [%s]", resp.DailySet.MatchIDs, ids[1])
	}

	stats, err := env.store.GetMatchStats(context.Background(), ids[0])
	if err != nil || stats["1"] != 1 {
		t.Errorf("Stats after delete = %v, %v; want them kept", stats, err)
	}
}

func TestDailyExclusivePublish(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seed(t, 2)

	rec := env.do(t, http.MethodGet, "/api/public/daily", nil)
	expectStatus(t, rec, http.StatusNotFound)
	if !strings.Contains(rec.Body.String(), "No published daily set found") {
		t.Errorf("404 body = %s", rec.Body.String())
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "week-1", "matchIds": []string{ids[0]}, "published": true,
	}), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "week-2", "matchIds": []string{ids[1]}, "published": true, "exclusive": true,
	}), http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/admin/daily", nil)
	var all struct {
		DailySets []store.WeeklySet `json:"dailySets"`
	}
	decode(t, rec, &all)
	if len(all.DailySets) != 2 || all.DailySets[0].Published || !all.DailySets[1].Published {
		t.Errorf("DailySets = %+v, want only week-2 published", all.DailySets)
	}

	for _, path := range []string{"/api/public/daily", "/api/public/daily?dateKey=latest", "/api/public/daily?dateKey=week-1"} {
		rec = env.do(t, http.MethodGet, path, nil)
		expectStatus(t, rec, http.StatusOK)
		var daily publish.DailyMatches
		decode(t, rec, &daily)
		if daily.DateKey != "week-2" || len(daily.Matches) != 1 || daily.Matches[0].ID != ids[1] {
			t.Errorf("GET %s = %+v, want week-2 with match %s", path, daily, ids[1])
		}
		if daily.Matches[0].HomeTeam.Name != "Galatasaray" {
			t.Errorf("GET %s: home team not joined: %+v", path, daily.Matches[0])
		}
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{"dateKey": "week-3"}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "2026/10/18", "matchIds": []string{ids[0]},
	}), http.StatusBadRequest)
}

func TestDailyReportsResolvedKey(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seed(t, 2)

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "week-3", "matchIds": []string{ids[0]}, "published": true,
	}), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "cup-final", "matchIds": []string{ids[1]}, "published": false,
	}), http.StatusOK)

	// A named set that is unpublished or missing answers with the set actually served.
	for _, key := range []string{"cup-final", "week-9"} {
		rec := env.do(t, http.MethodGet, "/api/public/daily?dateKey="+key, nil)
		expectStatus(t, rec, http.StatusOK)
		var daily publish.DailyMatches
		decode(t, rec, &daily)
		if daily.DateKey != "week-3" {
			t.Errorf("dateKey=%s: got dateKey %q, want week-3", key, daily.DateKey)
		}
		if len(daily.Matches) != 1 || daily.Matches[0].ID != ids[0] {
			t.Errorf("dateKey=%s: matches = %+v", key, daily.Matches)
		}
	}
}

func TestPredictionFlow(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seed(t, 1)
	matchID := ids[0]
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "week-1", "matchIds": ids, "published": true,
	}), http.StatusOK)

	submit := func(step int, field, pick string) {
		t.Helper()
		expectStatus(t, env.do(t, http.MethodPost, "/api/public/prediction", map[string]interface{}{
			"deviceId": "d1", "dateKey": "week-1", "matchId": matchID, "step": step, field: pick,
		}), http.StatusOK)
	}
	stats := func() store.MatchStats {
		t.Helper()
		rec := env.do(t, http.MethodGet, "/api/public/stats?dateKey=week-1", nil)
		expectStatus(t, rec, http.StatusOK)
		var resp struct {
			Stats map[string]store.MatchStats `json:"stats"`
		}
		decode(t, rec, &resp)
		return resp.Stats[matchID]
	}

	submit(1, "resultPick", "1")
	if got := stats(); got["1"] != 1 {
		t.Fatalf("After first pick: %v", got)
	}
	submit(1, "resultPick", "1")
	if got := stats(); got["1"] != 1 {
		t.Fatalf("After repeated pick: %v", got)
	}
	submit(1, "resultPick", "X")
	if got := stats(); got["1"] != 1 || got["X"] != 1 {
		t.Fatalf("After changed pick: %v", got)
	}

	rec := env.do(t, http.MethodGet, "/api/public/userState?deviceId=d1&dateKey=week-1", nil)
	var summary tally.Summary
	decode(t, rec, &summary)
	if summary.AnsweredCount != 0 {
		t.Errorf("AnsweredCount before step 2 = %d", summary.AnsweredCount)
	}

	submit(2, "ouPick", "under")
	rec = env.do(t, http.MethodGet, "/api/public/userState?deviceId=d1&dateKey=week-1", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &summary)
	if summary.AnsweredCount != 1 || summary.Tokens != 0 || summary.UnlockedMatchIDs == nil {
		t.Errorf("Summary = %+v", summary)
	}
	if got := stats(); got["under"] != 1 {
		t.Errorf("After step 2: %v", got)
	}
}

func TestPublicValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
		errMsg string
	}{
		{"prediction missing step", http.MethodPost, "/api/public/prediction",
			map[string]interface{}{"deviceId": "d1", "dateKey": "week-1", "matchId": "5"}, http.StatusBadRequest, "Missing required fields"},
		{"prediction missing device", http.MethodPost, "/api/public/prediction",
			map[string]interface{}{"dateKey": "week-1", "matchId": "5", "step": 1}, http.StatusBadRequest, "Missing required fields"},
		{"stats without dateKey", http.MethodGet, "/api/public/stats", nil, http.StatusBadRequest, "dateKey parameter required"},
		{"userState without device", http.MethodGet, "/api/public/userState?dateKey=week-1", nil, http.StatusBadRequest, "deviceId and dateKey required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			expectStatus(t, rec, tt.want)
			var resp map[string]string
			decode(t, rec, &resp)
			if resp["error"] != tt.errMsg {
				t.Errorf("error = %q, want %q", resp["error"], tt.errMsg)
			}
		})
	}

	rec := env.do(t, http.MethodGet, "/api/public/stats?dateKey=week-9", nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != `{"stats":{}}` {
		t.Errorf("Stats for missing set = %s", rec.Body.String())
	}
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/generate", map[string]int{"week": 4, "count": 3})
	expectStatus(t, rec, http.StatusBadRequest)

	env.seed(t, 0)
	rec = env.do(t, http.MethodPost, "/api/admin/generate", map[string]interface{}{"week": "4", "count": 3})
	expectStatus(t, rec, http.StatusOK)
	var resp struct {
		Count int `json:"count"`
	}
	decode(t, rec, &resp)
	if resp.Count != 3 {
		t.Errorf("Count = %d, want 3", resp.Count)
	}

	rec = env.do(t, http.MethodGet, "/api/public/daily?dateKey=week-4", nil)
	expectStatus(t, rec, http.StatusOK)
	var daily publish.DailyMatches
	decode(t, rec, &daily)
	if daily.DateKey != "week-4" || len(daily.Matches) != 3 {
		t.Errorf("Daily = %+v", daily)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/generate", map[string]int{"week": 4}), http.StatusBadRequest)
}

func TestUploadLogo(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "gs.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("PNGDATA"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload-logo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(env.cookie)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	var resp struct {
		URL string `json:"url"`
	}
	decode(t, rec, &resp)
	if !strings.HasPrefix(resp.URL, "/uploads/logos/") {
		t.Fatalf("URL = %q", resp.URL)
	}

	rec = env.do(t, http.MethodGet, resp.URL, nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "PNGDATA" {
		t.Errorf("Served %q", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/admin/upload-logo", map[string]string{})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestReset(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seed(t, 2)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "week-1", "matchIds": ids, "published": true,
	}), http.StatusOK)

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/reset?target=everything", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/reset?target=matches", nil), http.StatusOK)

	expectStatus(t, env.do(t, http.MethodGet, "/api/public/daily", nil), http.StatusNotFound)

	var teams struct {
		Teams []store.Team `json:"teams"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/admin/teams", nil), &teams)
	if len(teams.Teams) != 3 {
		t.Errorf("Teams after match reset = %d, want 3", len(teams.Teams))
	}

	ids = env.seed(t, 1)
	if ids[0] != "1" {
		t.Errorf("Counter not reset: new id %s", ids[0])
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/reset?target=all", nil), http.StatusOK)
	// A full reset also drops admin sessions.
	expectStatus(t, env.do(t, http.MethodGet, "/api/admin/teams", nil), http.StatusUnauthorized)
}

func TestAdminPages(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seed(t, 1)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "week-1", "matchIds": ids, "published": false,
	}), http.StatusOK)

	rec := env.do(t, http.MethodGet, "/admin", nil)
	expectStatus(t, rec, http.StatusOK)
	for _, want := range []string{"week-1", "Galatasaray", "Super Lig"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("Dashboard missing %q", want)
		}
	}

	form := url.Values{"exclusive": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/daily/week-1/publish", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(env.cookie)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusSeeOther)

	rec = env.do(t, http.MethodGet, "/admin/stats?dateKey=week-1", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "GS vs FB") {
		t.Errorf("Stats page missing fixture: %s", rec.Body.String())
	}

	env.cookie = nil
	rec = env.do(t, http.MethodGet, "/admin", nil)
	expectStatus(t, rec, http.StatusFound)
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q", loc)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/login", nil), http.StatusOK)
}

type failingStore struct {
	store.Store
	fail string
}

var errStoreDown = errors.New("store down")

func (f *failingStore) ListTeams(ctx context.Context) ([]store.Team, error) {
	if f.fail == "teams" {
		return nil, errStoreDown
	}
	return f.Store.ListTeams(ctx)
}

func (f *failingStore) ListMatches(ctx context.Context) ([]store.Match, error) {
	if f.fail == "matches" {
		return nil, errStoreDown
	}
	return f.Store.ListMatches(ctx)
}

func (f *failingStore) ListWeeklySets(ctx context.Context) ([]store.WeeklySet, error) {
	if f.fail == "sets" {
		return nil, errStoreDown
	}
	return f.Store.ListWeeklySets(ctx)
}

func (f *failingStore) GetSession(ctx context.Context, id string) (*store.Session, error) {
	if f.fail == "sessions" {
		return nil, errStoreDown
	}
	return f.Store.GetSession(ctx, id)
}

func TestLoginPageLogsSessionFailure(t *testing.T) {
	env := newTestEnvWith(t, func(s store.Store) store.Store {
		return &failingStore{Store: s, fail: "sessions"}
	})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(env.cookie)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	var logged bool
	for _, entry := range env.logs.AllEntries() {
		if entry.Message == "Failed to look up session" && entry.Data[logrus.ErrorKey] == errStoreDown {
			logged = true
		}
	}
	if !logged {
		t.Error("Expected session lookup failure to be logged")
	}
}

func TestAdminPageStoreFailure(t *testing.T) {
	for _, fail := range []string{"teams", "matches", "sets"} {
		t.Run(fail, func(t *testing.T) {
			env := newTestEnvWith(t, func(s store.Store) store.Store {
				return &failingStore{Store: s, fail: fail}
			})
			rec := env.do(t, http.MethodGet, "/admin", nil)
			expectStatus(t, rec, http.StatusInternalServerError)
			if strings.Contains(rec.Body.String(), "No matches yet") {
				t.Error("Dashboard rendered despite store failure")
			}
		})
	}
}

func TestPublishFormEscapesKey(t *testing.T) {
	env := newTestEnv(t)
	ids := env.seed(t, 1)
	expectStatus(t, env.do(t, http.MethodPost, "/api/admin/daily", map[string]interface{}{
		"dateKey": "cup final?", "matchIds": ids,
	}), http.StatusOK)

	rec := env.do(t, http.MethodGet, "/admin", nil)
	expectStatus(t, rec, http.StatusOK)
	action := "/admin/daily/cup%20final%3F/publish"
	if !strings.Contains(rec.Body.String(), `action="`+action+`"`) {
		t.Fatalf("Dashboard missing escaped form action %s", action)
	}

	req := httptest.NewRequest(http.MethodPost, action, strings.NewReader(url.Values{"exclusive": {"1"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(env.cookie)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusSeeOther)

	set, err := env.store.GetWeeklySet(context.Background(), "cup final?")
	if err != nil {
		t.Fatalf("GetWeeklySet: %v", err)
	}
	if set == nil || !set.Published {
		t.Errorf("Set not published through form: %+v", set)
	}
}

func TestLoginForm(t *testing.T) {
	env := newTestEnv(t)

	post := func(password string) *httptest.ResponseRecorder {
		form := url.Values{"password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := post("wrong")
	expectStatus(t, rec, http.StatusUnauthorized)
	if !strings.Contains(rec.Body.String(), "Invalid password") {
		t.Error("Expected error message on login page")
	}

	rec = post(testPassword)
	expectStatus(t, rec, http.StatusSeeOther)
	if rec.Header().Get("Location") != "/admin" {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
}
