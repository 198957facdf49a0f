// Package handler implements the HTTP API of the PortPilot portal.
// All handlers are methods on Server. They are split into files by area
// (session.go, pages.go, prefs.go, ...) but share the same Server struct so
// they can reach its dependencies.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/middleware"
	"github.com/portpilot/portal/internal/service"
	"github.com/portpilot/portal/internal/session"
	"github.com/portpilot/portal/internal/table"
)

// AuthServicer defines the session operations the handlers depend on.
// Defining the interface here, in the consumer package, lets handler tests
// inject a mock without a database or the remote API.
type AuthServicer interface {
	Login(ctx context.Context, email, password, recaptchaToken string) (domain.Session, error)
	Resolve(ctx context.Context, id string) (session.Context, error)
	Logout(ctx context.Context, sc session.Context) error
	ChangePassword(ctx context.Context, sc session.Context, password string) error
}

// PageServicer defines the tabular page operations.
type PageServicer interface {
	Load(ctx context.Context, sc session.Context, resource string) (service.PageState, error)
	State(sc session.Context, resource string, opts table.ViewOptions) (service.PageState, error)
	AddRow(sc session.Context, resource string) (table.Row, error)
	EditCell(sc session.Context, resource, rowID, field, value string) (table.Row, error)
	Blur(sc session.Context, resource, rowID, field string) (table.Row, error)
	Select(sc session.Context, resource, rowID string, on bool) error
	DeleteSelected(sc session.Context, resource string, confirmed bool) (int, error)
	Save(ctx context.Context, sc session.Context, resource string) (service.SaveResult, error)
	Export(sc session.Context, resource string, widths map[string]int) (service.Export, error)
	Import(sc session.Context, resource string, mode service.ImportMode, r io.Reader, filename string) (service.ImportResult, error)
	Decide(sc session.Context, resource string, d table.Decision) (service.ImportResult, error)
	Discard(key string)
}

// PrefServicer defines the preference operations.
type PrefServicer interface {
	Get(ctx context.Context, client uuid.UUID) (domain.Preferences, error)
	Widths(ctx context.Context, client uuid.UUID, resource string) (map[string]int, error)
	SetWidths(ctx context.Context, client uuid.UUID, resource string, widths map[string]int) (map[string]int, error)
	SetSidebar(ctx context.Context, client uuid.UUID, collapsed bool) error
}

// CodeServicer returns the company code option lists.
type CodeServicer interface {
	CompanyCodes(ctx context.Context, sc session.Context) domain.CompanyCodes
}

// Options tune cookie behaviour.
type Options struct {
	// CookieSecure marks cookies Secure; enable behind HTTPS.
	CookieSecure bool
}

// Server holds the handler dependencies.
type Server struct {
	auth  AuthServicer
	pages PageServicer
	prefs PrefServicer
	codes CodeServicer
	opts  Options
	log   *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(auth AuthServicer, pages PageServicer, prefs PrefServicer, codes CodeServicer, opts Options, log *slog.Logger) *Server {
	return &Server{auth: auth, pages: pages, prefs: prefs, codes: codes, opts: opts, log: log}
}

// Handler returns the routed API. Global middleware (request ID, logging,
// recovery, CORS, body limits) is applied by the caller.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewClientID(s.opts.CookieSecure))
		r.Use(middleware.NewSessionLoader(s.auth, s.log))

		r.Post("/session", s.CreateSession)
		r.Get("/session", s.GetSession)
		r.Delete("/session", s.DeleteSession)

		r.Get("/prefs", s.GetPrefs)
		r.Put("/prefs/widths/{resource}", s.PutWidths)
		r.Put("/prefs/sidebar", s.PutSidebar)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSignedIn)

			r.Patch("/session/password", s.ChangePassword)
			r.Get("/nav", s.GetNav)
			r.With(middleware.RequireAdmin).Get("/options/company-codes", s.GetCompanyCodes)

			r.Route("/pages/{resource}", func(r chi.Router) {
				r.Get("/", s.GetPage)
				r.Post("/load", s.LoadPage)
				r.Post("/rows", s.AddRow)
				r.Patch("/rows/{rowID}", s.EditCell)
				r.Post("/rows/{rowID}/blur", s.BlurCell)
				r.Put("/selection/{rowID}", s.SelectRow)
				r.Post("/delete", s.DeleteRows)
				r.Post("/save", s.SavePage)
				r.Get("/export", s.ExportPage)
				r.Post("/import", s.ImportPage)
				r.Post("/import/decision", s.DecideImport)
			})
		})
	})

	return r
}
