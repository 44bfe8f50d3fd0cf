// Package handler contains chi HTTP handlers that drive a session's
// activity board from browser requests.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/activity-board/internal/service"
	"github.com/Shivanand-hulikatti/activity-board/internal/session"
	"github.com/Shivanand-hulikatti/activity-board/internal/view"
)

// SessionCookie names the cookie carrying the board session id.
const SessionCookie = "activity_board_session"

// BoardFactory builds a fresh board for a browser whose Accept-Language
// header is acceptLanguage.
type BoardFactory func(acceptLanguage string) *service.Board

// actionFunc handles one control role posted to the list container.
type actionFunc func(ctx context.Context, b *service.Board, form url.Values)

// BoardHandler holds all HTTP handlers for the activity board.
type BoardHandler struct {
	sessions *session.Store[*service.Board]
	newBoard BoardFactory
	pages    *view.Renderer
	log      *zap.Logger
	actions  map[string]actionFunc
}

// NewBoardHandler constructs a BoardHandler.
func NewBoardHandler(sessions *session.Store[*service.Board], newBoard BoardFactory, pages *view.Renderer, log *zap.Logger) *BoardHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BoardHandler{
		sessions: sessions,
		newBoard: newBoard,
		pages:    pages,
		log:      log,
		actions: map[string]actionFunc{
			view.RemoveRole: removeParticipant,
		},
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// maxBannerDelay bounds the delay accepted by /banner.css.
const maxBannerDelay = time.Hour

// lookup returns the board of the caller's session, if it has a live one.
func (h *BoardHandler) lookup(r *http.Request) (*service.Board, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return h.sessions.Get(c.Value)
}

// board returns the caller's board, starting a new session when the cookie
// is missing or refers to an expired one.
func (h *BoardHandler) board(w http.ResponseWriter, r *http.Request) *service.Board {
	if b, ok := h.lookup(r); ok {
		return b
	}

	b := h.newBoard(r.Header.Get("Accept-Language"))
	id := h.sessions.Create(b)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return b
}

// detached keeps the request's values but not its cancellation: once a call
// to the activities API is issued it runs to completion.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func seeBoard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Index handles GET /
// Loads the activity list and renders the board page.
func (h *BoardHandler) Index(w http.ResponseWriter, r *http.Request) {
	b := h.board(w, r)
	b.Bootstrap(detached(r))

	var buf bytes.Buffer
	doc := view.NewDocument(b.Page(), b.Translator(), csrf.TemplateField(r))
	if err := h.pages.Board(&buf, doc); err != nil {
		h.log.Error("render board page", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// State handles GET /board.json
// Returns the session's current page state without fetching. A caller with
// no session gets the loading state and no session is started.
func (h *BoardHandler) State(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookup(r)
	if !ok {
		b = h.newBoard(r.Header.Get("Accept-Language"))
		defer b.Close()
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, b.Page())
}

// BannerCSS handles GET /banner.css?after={ms}
// Serves the rule that hides the message banner after the given delay.
func BannerCSS(w http.ResponseWriter, r *http.Request) {
	after, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	if err != nil || after < 0 {
		after = 0
	}
	after = min(after, maxBannerDelay.Milliseconds())
	delay := time.Duration(after) * time.Millisecond

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = view.BannerCSS(w, delay)
}

// Signup handles POST /signup
// Submits the signup form to the activities API and returns to the board.
func (h *BoardHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	b := h.board(w, r)
	b.Signup(detached(r), r.PostForm.Get("email"), r.PostForm.Get("activity"))
	seeBoard(w, r)
}

// ListAction handles POST /activities-list/actions
// Every control inside the activity list posts here; the role field picks
// the action. Posts without a known role are ignored.
func (h *BoardHandler) ListAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	b := h.board(w, r)

	role := r.PostForm.Get("role")
	action, ok := h.actions[role]
	if !ok {
		h.log.Debug("ignoring list action", zap.String("role", role))
		seeBoard(w, r)
		return
	}
	action(detached(r), b, r.PostForm)
	seeBoard(w, r)
}

func removeParticipant(ctx context.Context, b *service.Board, form url.Values) {
	b.Remove(ctx, form.Get("activity"), form.Get("email"))
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
