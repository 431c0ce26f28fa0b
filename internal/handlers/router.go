package handlers

import (
	"net/http"

	"transitwatch/internal/middleware"
	"transitwatch/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Services groups what the router needs. Image may be nil.
type Services struct {
	Auth    *services.AuthService
	Profile *services.ProfileService
	Report  *services.ReportService
	Image   *services.ImageService
	Hub     *services.FeedHub
}

// NewRouter builds the HTTP API
func NewRouter(s Services) http.Handler {
	authHandler := NewAuthHandler(s.Auth)
	profileHandler := NewProfileHandler(s.Profile)
	reportHandler := NewReportHandler(s.Report, s.Image)
	catalogHandler := NewCatalogHandler()
	feedHandler := NewFeedHandler(s.Hub)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/signup", authHandler.SignUp)
		r.Post("/auth/signin", authHandler.SignIn)
		r.Post("/auth/password-reset", authHandler.RequestPasswordReset)
		r.Post("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)

		r.Get("/cities", catalogHandler.ListCities)
		r.Get("/lines", catalogHandler.ListLines)
		r.Get("/report-types", catalogHandler.ListReportTypes)

		r.Get("/reports", reportHandler.ListReports)
		r.Get("/ws/reports", feedHandler.HandleFeed)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(s.Auth))
			r.Get("/profiles/{id}", profileHandler.GetProfile)
			r.Put("/profiles/{id}", profileHandler.PutProfile)
			r.Delete("/profiles/{id}", profileHandler.DeleteProfile)
			r.Put("/push-token", profileHandler.RegisterPushToken)
			r.Post("/reports", reportHandler.CreateReport)
			r.Delete("/reports/{id}", reportHandler.DeleteReport)
			r.Post("/reports/images", reportHandler.CreateImageUpload)
		})
	})

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
