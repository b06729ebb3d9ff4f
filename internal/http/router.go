package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/orgdesk/orgdesk-api/internal/auth"
	"github.com/orgdesk/orgdesk-api/internal/config"
	"github.com/orgdesk/orgdesk-api/internal/httputil"
	"github.com/orgdesk/orgdesk-api/internal/logging"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, authHandler *auth.Handler, authMiddleware *auth.Middleware, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	// Every request resolves its session cookie first; handlers see the
	// account (or nil) in the context.
	r.Use(authMiddleware.SessionContext)

	// Public routes
	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		log.Println("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		// Public
		r.Post("/signup", authHandler.SignUp)
		r.Get("/verify/{token}", authHandler.VerifyEmail)
		r.Post("/activate", authHandler.Activate)
		r.Post("/signin", authHandler.SignIn)
		r.Post("/forgot", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Post("/resend-verification", authHandler.ResendVerification)

		// Protected
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Post("/signout", authHandler.SignOut)
			r.Get("/user", authHandler.CurrentUser)
			r.Post("/updateProfile", authHandler.UpdateProfile)
		})
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} httputil.Response
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondSuccess(w, "api is running", nil, http.StatusOK)
}
