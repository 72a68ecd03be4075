package http

import (
	"shortlink/pkg/logging"
	"shortlink/pkg/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// SetupRoutes mounts the management API. With a nil oauthMiddleware every
// request is anonymous, so owner-only routes answer 401.
func SetupRoutes(r chi.Router, handler *Handler, oauthMiddleware *middleware.OAuthMiddleware, logger *logging.Logger) {
	r.Use(logging.RequestLogger(logger), chimw.Recoverer)
	r.Get("/health", handler.HealthCheck)
	r.Route("/v1", func(r chi.Router) {
		if oauthMiddleware != nil {
			r.With(oauthMiddleware.Optional()).Post("/links", handler.CreateLink)
			r.With(oauthMiddleware.Authenticate("links:read")).Get("/links", handler.ListLinks)
			r.With(oauthMiddleware.Authenticate("links:write")).Delete("/links/{code}", handler.DeleteLink)
		} else {
			r.Post("/links", handler.CreateLink)
			r.Get("/links", handler.ListLinks)
			r.Delete("/links/{code}", handler.DeleteLink)
		}
		r.Get("/links/{code}", handler.GetLink)
		r.Get("/links/{code}/stats", handler.Stats)
		r.Get("/resolve/{code}", handler.Resolve)
		r.Get("/resolve/", handler.Resolve)
	})
	mountRedirect(r, handler)
}

// SetupRedirectRoutes mounts only what the public redirect server serves.
func SetupRedirectRoutes(r chi.Router, handler *Handler, logger *logging.Logger) {
	r.Use(logging.RequestLogger(logger), chimw.Recoverer)
	r.Get("/health", handler.HealthCheck)
	mountRedirect(r, handler)
}

func mountRedirect(r chi.Router, handler *Handler) {
	r.Get("/r/{code}", handler.Redirect)
	r.Get("/r/", handler.Redirect)
}
