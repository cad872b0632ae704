// Route registration and go-chi router setup.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/diagrammaton/server/internal/api/handlers"
	apmiddleware "github.com/diagrammaton/server/internal/api/middleware"
	"github.com/diagrammaton/server/internal/domain/account"
	"github.com/diagrammaton/server/internal/domain/generation"
	"github.com/diagrammaton/server/internal/domain/identity"
	"github.com/diagrammaton/server/internal/domain/models"
	"github.com/diagrammaton/server/internal/infra/config"
	"github.com/diagrammaton/server/internal/infra/llm"
	"github.com/diagrammaton/server/internal/infra/ratelimit"
)

// NewRouter creates and configures a chi router with all routes.
// License-keyed endpoints (/api/generate, /api/models, license
// validation) are public; account management requires a Bearer JWT.
func NewRouter(db *sql.DB, cfg config.Config, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	// Shared services
	resolver := identity.NewResolver(db)
	gate := ratelimit.NewWithQuota(db, cfg.RateLimit, cfg.RateWindow)
	dialer := &generation.HTTPDialer{
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		FirstByteTimeout: cfg.FirstByteTimeout,
		Log:              log,
	}
	genSvc := generation.New(gate, resolver, dialer, log).WithBudget(cfg.RequestBudget)
	catalog := models.NewCatalog(func(provider models.Provider, apiKey string) llm.ModelLister {
		if provider == models.ProviderAnthropic {
			return llm.NewAnthropicClient(cfg.AnthropicBaseURL, apiKey, log)
		}
		return llm.NewOpenAIClient(cfg.OpenAIBaseURL, apiKey, log)
	}, log)
	accountSvc := account.NewService(db)

	generateHandler := handlers.NewGenerateHandler(genSvc, log)
	modelsHandler := handlers.NewModelsHandler(resolver, catalog, log)
	authHandler := handlers.NewAuthHandler(accountSvc, log)
	accountHandler := handlers.NewAccountHandler(accountSvc, resolver, log)

	// Health check, used by load balancers and health probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	// Auth endpoints, public, no JWT required
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register) // POST /auth/register
		r.Post("/login", authHandler.Login)       // POST /auth/login
	})

	r.Route("/api", func(r chi.Router) {
		// License-keyed endpoints: the license key in the body is the
		// credential, no JWT involved.
		r.Post("/generate", generateHandler.Generate) // POST /api/generate
		r.Post("/models", modelsHandler.List)         // POST /api/models

		r.Route("/account", func(r chi.Router) {
			// Public: the extension checks a stored key without a session.
			r.Post("/license/validate", accountHandler.ValidateLicense)

			// Account management requires a valid Bearer JWT.
			r.Group(func(r chi.Router) {
				r.Use(apmiddleware.Auth)
				r.Get("/license", accountHandler.GetLicense)       // GET /api/account/license
				r.Post("/license", accountHandler.GenerateLicense) // POST /api/account/license
				r.Get("/apikeys", accountHandler.GetAPIKeys)       // GET /api/account/apikeys
				r.Put("/apikeys", accountHandler.PutAPIKeys)       // PUT /api/account/apikeys
			})
		})
	})

	return r
}
