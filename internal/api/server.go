package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/terra-clan/progression-engine/internal/config"
	"github.com/terra-clan/progression-engine/internal/health"
	"github.com/terra-clan/progression-engine/internal/models"
)

// CourseService serves catalog reads annotated with candidate progress
type CourseService interface {
	ListCourses(ctx context.Context, candidateID string) ([]models.CourseSummary, error)
	GetCourseView(ctx context.Context, courseID, candidateID string) (*models.CourseDetailView, error)
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
}

// ProgressService records candidate progress
type ProgressService interface {
	RecordTaskCompletion(ctx context.Context, candidateID, taskID string) (*models.CompleteTaskResult, error)
	SubmitAssessment(ctx context.Context, req models.SubmitAssessmentRequest) (*models.SubmissionResult, error)
}

// MatchService reads candidate job matches
type MatchService interface {
	Matches(ctx context.Context, candidateID string) ([]*models.JobMatch, error)
}

// EventSubscriber streams a candidate's progress events
type EventSubscriber interface {
	Subscribe(ctx context.Context, candidateID string) (<-chan models.ProgressEvent, error)
}

// Deps are the collaborators the API server routes to
type Deps struct {
	Courses  CourseService
	Progress ProgressService
	Matches  MatchService
	Events   EventSubscriber
	Clients  ClientStore
	Health   *health.Registry
	Logger   *slog.Logger
}

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	courses        CourseService
	progress       ProgressService
	matches        MatchService
	events         EventSubscriber
	health         *health.Registry
	logger         *slog.Logger
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Health == nil {
		deps.Health = health.NewRegistry(0)
	}

	s := &Server{
		config:         cfg,
		courses:        deps.Courses,
		progress:       deps.Progress,
		matches:        deps.Matches,
		events:         deps.Events,
		health:         deps.Health,
		logger:         logger,
		authMiddleware: NewAuthMiddleware(deps.Clients, logger),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// Handler returns the router wrapped with OpenTelemetry HTTP instrumentation
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "progression-engine",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// HTTPServer builds the net/http server for the configured address
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
	})

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Courses
			r.Route("/courses", func(r chi.Router) {
				r.Use(s.authMiddleware.RequirePermission(models.PermCoursesRead))
				r.Get("/", s.handleListCourses)
				r.Get("/{courseID}", s.handleGetCourseView)
			})
			r.With(s.authMiddleware.RequirePermission(models.PermCoursesRead)).Get("/tasks/{taskID}", s.handleGetTask)

			// Progress
			r.Route("/progress", func(r chi.Router) {
				r.Use(s.authMiddleware.RequirePermission(models.PermProgressWrite))
				r.Post("/tasks/complete", s.handleCompleteTask)
				r.Post("/assessments/submit", s.handleSubmitAssessment)
			})

			// Matches
			r.With(s.authMiddleware.RequirePermission(models.PermMatchesRead)).Get("/candidates/{candidateID}/matches", s.handleListMatches)
		})

		// Long-lived stream, no request timeout
		r.With(s.authMiddleware.RequirePermission(models.PermEventsRead)).Get("/candidates/{candidateID}/events", s.handleEventsWS)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
