package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Shivanand-hulikatti/activity-board/internal/banner"
	"github.com/Shivanand-hulikatti/activity-board/internal/i18n"
	"github.com/Shivanand-hulikatti/activity-board/internal/model"
	"github.com/Shivanand-hulikatti/activity-board/internal/repository"
	"github.com/Shivanand-hulikatti/activity-board/internal/service"
	"github.com/Shivanand-hulikatti/activity-board/internal/session"
	"github.com/Shivanand-hulikatti/activity-board/internal/view"
)

// activitiesAPI is an in-memory stand-in for the external activities API.
type activitiesAPI struct {
	mu         sync.Mutex
	order      []string
	activities map[string]*model.Activity
	mutations  int
	lists      int
}

func newActivitiesAPI() *activitiesAPI {
	api := &activitiesAPI{activities: map[string]*model.Activity{}}
	api.add(model.Activity{Name: "Programming Class", Description: "Learn programming fundamentals",
		Schedule: "Tuesdays and Thursdays, 3:30 PM - 4:30 PM", MaxParticipants: 20,
		Participants: []string{"emma@mergington.edu", "sophia@mergington.edu"}})
	api.add(model.Activity{Name: "Chess Club", Description: "Learn strategies and compete in chess tournaments",
		Schedule: "Fridays, 3:30 PM - 5:00 PM", MaxParticipants: 12,
		Participants: []string{"michael@mergington.edu"}})
	api.add(model.Activity{Name: "Art Studio", Description: "Painting and drawing",
		Schedule: "Wednesdays, 3:30 PM - 5:00 PM", MaxParticipants: 15})
	return api
}

func (a *activitiesAPI) add(act model.Activity) {
	a.order = append(a.order, act.Name)
	a.activities[act.Name] = &act
}

func (a *activitiesAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r.Method == http.MethodGet && r.URL.Path == "/activities" {
		a.lists++
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, name := range a.order {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(name)
			val, _ := json.Marshal(a.activities[name])
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
		w.Header().Set("Content-Type", "application/json")
		_, _ = buf.WriteTo(w)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/activities/"), "/")
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}
	a.mutations++
	act, ok := a.activities[parts[0]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Activity not found"})
		return
	}
	email := r.URL.Query().Get("email")

	switch {
	case r.Method == http.MethodPost && parts[1] == "signup":
		if slices.Contains(act.Participants, email) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Student already signed up for this activity"})
			return
		}
		act.Participants = append(act.Participants, email)
		writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Signed up %s for %s", email, act.Name)})
	case r.Method == http.MethodDelete && parts[1] == "participants":
		idx := slices.Index(act.Participants, email)
		if idx < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Participant not found"})
			return
		}
		act.Participants = slices.Delete(act.Participants, idx, idx+1)
		writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Unregistered %s from %s", email, act.Name)})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
	}
}

func (a *activitiesAPI) mutationCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mutations
}

func (a *activitiesAPI) listCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lists
}

type testBoard struct {
	srv      *httptest.Server
	api      *httptest.Server
	backend  *activitiesAPI
	sessions *session.Store[*service.Board]
	logs     *observer.ObservedLogs
}

func newTestBoard(t *testing.T, opts RouterOptions) *testBoard {
	t.Helper()
	backend := newActivitiesAPI()
	api := httptest.NewServer(backend)
	t.Cleanup(api.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	repo := repository.NewActivityRepository(api.URL, api.Client())
	translator := i18n.NewTranslator("en", log)
	sessions := session.NewStore[*service.Board](time.Hour, (*service.Board).Close)
	factory := func(acceptLanguage string) *service.Board {
		return service.NewBoard(repo, translator.For(acceptLanguage), banner.New(time.Minute, nil), log)
	}
	pages, err := view.NewRenderer()
	require.NoError(t, err)

	h := NewBoardHandler(sessions, factory, pages, log)
	srv := httptest.NewServer(NewRouter(h, log, opts))
	t.Cleanup(srv.Close)

	return &testBoard{srv: srv, api: api, backend: backend, sessions: sessions, logs: logs}
}

func (tb *testBoard) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func getPage(t *testing.T, c *http.Client, base string) string {
	t.Helper()
	resp, err := c.Get(base + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func getState(t *testing.T, c *http.Client, base string) view.Page {
	t.Helper()
	resp, err := c.Get(base + "/board.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page view.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	return page
}

func postForm(t *testing.T, c *http.Client, target string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(target, form)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func TestIndexRendersBoard(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	c := tb.client(t)

	html := getPage(t, c, tb.srv.URL)
	assert.Equal(t, 3, strings.Count(html, `class="activity-card`))
	assert.Equal(t, 4, strings.Count(html, "<option "))
	assert.Contains(t, html, "18 spots left")
	assert.Contains(t, html, "No participants yet")
	assert.Contains(t, html, `aria-label="Remove michael@mergington.edu from Chess Club"`)
	assert.Contains(t, html, `id="message" class="hidden"`)

	u, _ := url.Parse(tb.srv.URL)
	cookies := c.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, 1, tb.sessions.Len())

	// The same browser keeps its session.
	getPage(t, c, tb.srv.URL)
	assert.Equal(t, 1, tb.sessions.Len())
}

func TestIndexKeepsAPIOrder(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	c := tb.client(t)
	getPage(t, c, tb.srv.URL)

	page := getState(t, c, tb.srv.URL)
	var names []string
	for _, card := range page.List.Cards {
		names = append(names, card.Name)
	}
	assert.Equal(t, []string{"Programming Class", "Chess Club", "Art Studio"}, names)
	assert.Equal(t, "-- Select an activity --", page.List.Options[0].Label)
}

func TestSignupFlow(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	c := tb.client(t)
	getPage(t, c, tb.srv.URL)

	resp := postForm(t, c, tb.srv.URL+"/signup", url.Values{
		"email":    {"ada@mergington.edu"},
		"activity": {"Chess Club"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "redirect is followed back to the board")
	assert.Equal(t, "/", resp.Request.URL.Path)

	page := getState(t, c, tb.srv.URL)
	require.NotNil(t, page.Message)
	assert.Equal(t, model.Message{Text: "Signed up ada@mergington.edu for Chess Club", Kind: model.MessageSuccess}, *page.Message)
	assert.Equal(t, view.Form{}, page.Form)

	chess := page.List.Cards[1]
	assert.Equal(t, 10, chess.SpotsLeft)
	require.Len(t, chess.Participants, 2)
	assert.Equal(t, "Ada", chess.Participants[1].DisplayName)

	assert.Equal(t, 2, tb.backend.listCount(), "one fetch for the page, one after the signup")
}

func TestSignupPageHidesMessageAfterTTL(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	c := tb.client(t)
	getPage(t, c, tb.srv.URL)

	resp, err := c.PostForm(tb.srv.URL+"/signup", url.Values{
		"email":    {"ada@mergington.edu"},
		"activity": {"Chess Club"},
	})
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `href="/banner.css?after=`)

	// The board's banner TTL is one minute.
	page := getState(t, c, tb.srv.URL)
	assert.Greater(t, page.MessageRemainingMS, int64(50_000))
	assert.LessOrEqual(t, page.MessageRemainingMS, int64(60_000))
}

func TestBannerCSS(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})

	tests := []struct {
		query string
		want  string
	}{
		{"?after=4000", " 4000ms"},
		{"", " 0ms"},
		{"?after=-5", " 0ms"},
		{"?after=soon", " 0ms"},
		{"?after=99999999999999999", " 3600000ms"},
	}
	for _, tt := range tests {
		resp, err := http.Get(tb.srv.URL + "/banner.css" + tt.query)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, tt.query)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/css", tt.query)
		assert.Contains(t, string(body), "message-expire 0s linear"+tt.want, tt.query)
	}
}

func TestStateWithoutSessionStartsNone(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})

	resp, err := http.Get(tb.srv.URL + "/board.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Values("Set-Cookie"))

	var page view.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, "Loading activities...", page.List.Notice)
	assert.Zero(t, tb.sessions.Len())
	assert.Zero(t, tb.backend.listCount())
}

func TestSignupRejectedKeepsForm(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	c := tb.client(t)

	postForm(t, c, tb.srv.URL+"/signup", url.Values{
		"email":    {"michael@mergington.edu"},
		"activity": {"Chess Club"},
	})

	page := getState(t, c, tb.srv.URL)
	require.NotNil(t, page.Message)
	assert.Equal(t, model.Message{Text: "Student already signed up for this activity", Kind: model.MessageError}, *page.Message)
	assert.Equal(t, view.Form{Email: "michael@mergington.edu", Activity: "Chess Club"}, page.Form)

	html := getPage(t, c, tb.srv.URL)
	assert.Contains(t, html, `id="message" class="error">Student already signed up for this activity</div>`)
	assert.Contains(t, html, `<option value="Chess Club" selected>Chess Club</option>`)
}

func TestRemoveFlow(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	c := tb.client(t)
	getPage(t, c, tb.srv.URL)

	postForm(t, c, tb.srv.URL+"/activities-list/actions", url.Values{
		"role":     {view.RemoveRole},
		"activity": {"Programming Class"},
		"email":    {"emma@mergington.edu"},
	})

	page := getState(t, c, tb.srv.URL)
	require.NotNil(t, page.Message)
	assert.Equal(t, model.Message{Text: "Unregistered emma@mergington.edu from Programming Class", Kind: model.MessageSuccess}, *page.Message)
	require.Len(t, page.List.Cards[0].Participants, 1)
	assert.Equal(t, "sophia@mergington.edu", page.List.Cards[0].Participants[0].Email)
}

func TestRemoveNotFound(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	c := tb.client(t)
	getPage(t, c, tb.srv.URL)

	postForm(t, c, tb.srv.URL+"/activities-list/actions", url.Values{
		"role":     {view.RemoveRole},
		"activity": {"Art Studio"},
		"email":    {"ghost@mergington.edu"},
	})

	page := getState(t, c, tb.srv.URL)
	require.NotNil(t, page.Message)
	assert.Equal(t, model.Message{Text: "Participant not found", Kind: model.MessageError}, *page.Message)
	assert.Len(t, page.List.Cards, 3)
}

func TestRemoveMissingAttributes(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	c := tb.client(t)

	postForm(t, c, tb.srv.URL+"/activities-list/actions", url.Values{
		"role":     {view.RemoveRole},
		"activity": {"Chess Club"},
	})

	page := getState(t, c, tb.srv.URL)
	require.NotNil(t, page.Message)
	assert.Equal(t, model.Message{Text: "Unable to remove participant.", Kind: model.MessageError}, *page.Message)
	assert.Zero(t, tb.backend.mutationCount())
}

func TestListActionIgnoresUnknownRole(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	c := tb.client(t)

	for _, role := range []string{"", "participant-promote"} {
		resp := postForm(t, c, tb.srv.URL+"/activities-list/actions", url.Values{
			"role":     {role},
			"activity": {"Chess Club"},
			"email":    {"michael@mergington.edu"},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Zero(t, tb.backend.mutationCount())
	assert.Nil(t, getState(t, c, tb.srv.URL).Message)
}

func TestAPIUnavailable(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	tb.api.Close()
	c := tb.client(t)

	html := getPage(t, c, tb.srv.URL)
	assert.Contains(t, html, "Failed to load activities. Please try again later.")
	assert.Equal(t, 1, strings.Count(html, "<option "))

	postForm(t, c, tb.srv.URL+"/signup", url.Values{"email": {"a@b"}, "activity": {"Chess Club"}})
	page := getState(t, c, tb.srv.URL)
	require.NotNil(t, page.Message)
	assert.Equal(t, model.Message{Text: "Failed to sign up. Please try again.", Kind: model.MessageError}, *page.Message)

	postForm(t, c, tb.srv.URL+"/activities-list/actions", url.Values{
		"role": {view.RemoveRole}, "activity": {"Chess Club"}, "email": {"a@b"},
	})
	page = getState(t, c, tb.srv.URL)
	assert.Equal(t, "Failed to remove participant. Please try again.", page.Message.Text)

	assert.NotZero(t, tb.logs.FilterMessage("Error fetching activities").Len())
	assert.Equal(t, 1, tb.logs.FilterMessage("Error signing up").Len())
	assert.Equal(t, 1, tb.logs.FilterMessage("Error removing participant").Len())
}

func TestSessionsAreIsolated(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	alice, bob := tb.client(t), tb.client(t)
	getPage(t, alice, tb.srv.URL)
	getPage(t, bob, tb.srv.URL)

	postForm(t, alice, tb.srv.URL+"/signup", url.Values{"email": {"alice@mergington.edu"}, "activity": {"Art Studio"}})

	assert.NotNil(t, getState(t, alice, tb.srv.URL).Message)
	assert.Nil(t, getState(t, bob, tb.srv.URL).Message)
	assert.Equal(t, 2, tb.sessions.Len())

	// Bob sees the new participant once his board fetches again.
	html := getPage(t, bob, tb.srv.URL)
	assert.Contains(t, html, "Alice")
}

func TestLocalizedBoard(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})
	req, err := http.NewRequest(http.MethodGet, tb.srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")

	resp, err := tb.client(t).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Contains(t, string(body), `<html lang="fr">`)
	assert.Contains(t, string(body), "-- Choisir une activité --")
	assert.Contains(t, string(body), "18 places restantes")
}

func TestHealthAndStatic(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})

	resp, err := http.Get(tb.srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])

	resp, err = http.Get(tb.srv.URL + "/static/styles.css")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestAccessLog(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{})

	resp, err := http.Get(tb.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	// The access log line is written after the response is flushed.
	var entries []observer.LoggedEntry
	require.Eventually(t, func() bool {
		entries = tb.logs.FilterMessage("request").FilterField(zap.String("path", "/health")).All()
		return len(entries) == 1
	}, time.Second, 5*time.Millisecond)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestCSRFProtection(t *testing.T) {
	tb := newTestBoard(t, RouterOptions{CSRFKey: bytes.Repeat([]byte{7}, 32)})
	cl := tb.client(t)

	html := getPage(t, cl, tb.srv.URL)
	assert.Contains(t, html, `name="csrf_token"`)

	resp := postForm(t, cl, tb.srv.URL+"/signup", url.Values{"email": {"a@b"}, "activity": {"Chess Club"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, tb.backend.mutationCount())
}
