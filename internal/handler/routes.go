package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/activity-board/internal/view"
)

// RouterOptions toggles transport-level protections.
type RouterOptions struct {
	// CSRFKey enables CSRF protection on the board routes when non-nil.
	CSRFKey []byte
	// SecureCookies marks the CSRF cookie Secure.
	SecureCookies bool
}

// NewRouter builds the board's router.
func NewRouter(h *BoardHandler, log *zap.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(log))
	r.Use(SecurityHeaders)

	// Health
	r.Get("/health", HealthCheck)

	// Static assets
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(view.Static())))
	r.Get("/banner.css", BannerCSS)

	// Board
	r.Group(func(r chi.Router) {
		if opts.CSRFKey != nil {
			r.Use(CSRF(opts.CSRFKey, opts.SecureCookies))
		}
		r.Get("/", h.Index)
		r.Get("/board.json", h.State)
		r.Post("/signup", h.Signup)
		r.Post("/activities-list/actions", h.ListAction)
	})

	return r
}
