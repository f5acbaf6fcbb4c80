package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"quizwrap/internal/config"
	"quizwrap/internal/metrics"
	"quizwrap/internal/service"
	"quizwrap/internal/transport/rest/handler"
	"quizwrap/internal/transport/rest/middleware"
	"quizwrap/internal/transport/web"
	"quizwrap/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService    *service.AuthService
	SessionService *service.SessionService
	RecordService  *service.RecordService
	WSHub          *ws.Hub
	FormURL        string
	Features       config.Features
	AllowedOrigins []string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	sessionHandler := handler.NewSessionHandler(c.SessionService)
	recordHandler := handler.NewRecordHandler(c.RecordService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.SessionService)
	pageHandler := web.NewHandler(c.FormURL, c.Features)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	r.Use(metrics.Middleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/sessions", sessionHandler.Open).Methods("POST")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/session", wsHandler.StudentWS).Methods("GET")

	// Client routes (require client token)
	clientRoutes := v1.PathPrefix("/session").Subrouter()
	clientRoutes.Use(authMW.RequireClient)

	clientRoutes.HandleFunc("", sessionHandler.Get).Methods("GET")
	clientRoutes.HandleFunc("", sessionHandler.Close).Methods("DELETE")
	clientRoutes.HandleFunc("/register", sessionHandler.Register).Methods("POST")
	clientRoutes.HandleFunc("/focus-loss", sessionHandler.FocusLoss).Methods("POST")
	clientRoutes.HandleFunc("/finish", sessionHandler.Finish).Methods("POST")
	clientRoutes.HandleFunc("/reset", sessionHandler.Reset).Methods("POST")

	if c.Features.InstructorReview {
		v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
		v1.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")
		v1.HandleFunc("/ws/instructor", wsHandler.InstructorWS).Methods("GET")

		// Instructor routes (require instructor auth)
		instructorRoutes := v1.PathPrefix("/records").Subrouter()
		instructorRoutes.Use(authMW.RequireInstructor)

		instructorRoutes.HandleFunc("", recordHandler.List).Methods("GET")
		instructorRoutes.HandleFunc("", recordHandler.Clear).Methods("DELETE")
		instructorRoutes.HandleFunc("/summary", recordHandler.Summary).Methods("GET")
		instructorRoutes.HandleFunc("/export", recordHandler.Export).Methods("GET")

		r.HandleFunc("/instructor", pageHandler.Instructor).Methods("GET")
	}

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		clients, instructors := c.WSHub.Counts()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"clients":     clients,
			"instructors": instructors,
		})
	}).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Pages
	r.PathPrefix("/static/").Handler(web.Static()).Methods("GET")
	r.HandleFunc("/", pageHandler.Student).Methods("GET")

	origins := c.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsMW := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	})

	return middleware.Logging(corsMW(r))
}
