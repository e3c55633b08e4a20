package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"veorelay/internal/http/handlers"
	"veorelay/internal/infra"
	"veorelay/internal/middleware"
)

// Options carries the cross-cutting dependencies the router wires in front of
// the relay handlers.
type Options struct {
	Logger          infra.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.CORSOrigins))
	r.Use(middleware.I18N("en", opts.CountryLookup))

	r.Get("/v1/healthz", app.Health)

	r.Route("/api/veo", func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/generate", app.VeoGenerate)
		r.Get("/status/{operationId}", app.VeoStatus)
		r.Post("/cancel/{operationId}", app.VeoCancel)
		r.Get("/video/{operationId}", app.VeoVideo)
	})

	return r
}
