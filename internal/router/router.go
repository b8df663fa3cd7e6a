package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/GregMSThompson/insight-portal/internal/handlers"
	"github.com/GregMSThompson/insight-portal/internal/middleware"
)

type Options struct {
	CORSOrigins []string
}

func NewRouter(deps *handlers.Deps, opts Options) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggerMiddleware(deps.Log).LoggerMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.SessionHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	ah := handlers.NewAuthHandlers(deps)
	ush := handlers.NewUserHandlers(deps)
	dh := handlers.NewDashboardHandlers(deps)
	eh := handlers.NewEmbedHandlers(deps)
	th := handlers.NewTokenHandlers(deps)
	uph := handlers.NewUploadHandlers(deps)
	hh := handlers.NewHealthHandlers(deps)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", hh.Health)
		r.Mount("/auth", ah.AuthRoutes())

		r.Group(func(r chi.Router) {
			r.Use(deps.Middleware.RequireSession)

			r.Route("/users", func(r chi.Router) {
				r.Use(deps.Middleware.RequireAdmin)
				r.Mount("/", ush.UserRoutes())
			})
			r.Mount("/dashboards", dh.DashboardRoutes())
			r.Mount("/embeds", eh.EmbedRoutes())
			r.Mount("/uploads", uph.UploadRoutes())

			r.Post("/get-guest-token", th.GetGuestToken)
			r.Get("/test-superset-connection", th.TestConnection)
		})
	})

	return r
}

// Instrument wraps the router so every request gets a server span.
func Instrument(h http.Handler) http.Handler {
	return otelhttp.NewHandler(h, "portal",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
