package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/tendant/simple-site/pkg/sitecontent"
)

// multipartOverhead is the room left for form fields and boundaries on top
// of the image itself
const multipartOverhead = 1 << 20

// Options configures the HTTP surface
type Options struct {
	Production bool

	MaxUploadBytes     int64
	RateLimitWindow    time.Duration
	RateLimitMax       int
	UploadRateLimitMax int
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string

	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxy bool

	// Logger receives handler logs. RequestLogger, when set, logs every
	// request through httplog.
	Logger        *slog.Logger
	RequestLogger *httplog.Logger
}

// Server holds the handlers for the site API
type Server struct {
	svc        sitecontent.Service
	logger     *slog.Logger
	production bool

	maxUploadBytes int64
	limiter        *RateLimiter
	uploadLimiter  *RateLimiter
	opts           Options
	now            func() time.Time
}

// NewServer creates the API server. Zero options take the documented defaults.
func NewServer(svc sitecontent.Service, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = sitecontent.DefaultMaxUploadBytes
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = 15 * time.Minute
	}
	if opts.RateLimitMax <= 0 {
		opts.RateLimitMax = 100
	}
	if opts.UploadRateLimitMax <= 0 {
		opts.UploadRateLimitMax = 10
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.CORSAllowedOrigins) == 0 {
		opts.CORSAllowedOrigins = []string{"*"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		svc:            svc,
		logger:         logger,
		production:     opts.Production,
		maxUploadBytes: opts.MaxUploadBytes,
		limiter: NewRateLimiter(opts.RateLimitWindow, opts.RateLimitMax,
			"Too many requests from this IP, please try again later."),
		uploadLimiter: NewRateLimiter(opts.RateLimitWindow, opts.UploadRateLimitMax,
			"Too many upload requests, please try again later."),
		opts: opts,
		now:  time.Now,
	}
}

// Routes returns the full router: /health, /uploads/* and the /api tree
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	if s.opts.RequestLogger != nil {
		r.Use(httplog.RequestLogger(s.opts.RequestLogger))
	}
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders(s.production))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", s.Health)
	r.With(crossOriginResources).Get("/uploads/*", s.ServeUpload)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Use(Deadline(s.opts.RequestTimeout))
		r.Use(s.Authenticate)

		r.Mount("/auth", s.authRoutes())
		r.Mount("/websites", s.websiteRoutes())
		r.Mount("/media", s.childRoutes(sitecontent.ChildKindMedia))
		r.Mount("/carousel", s.childRoutes(sitecontent.ChildKindCarousel))

		r.With(RequireAuth).Get("/activity", s.ListActivity)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeMessage(w, r, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeMessage(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func (s *Server) authRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", s.Register)
	r.Post("/login", s.Login)
	r.With(RequireAuth).Get("/me", s.Me)
	return r
}

func (s *Server) websiteRoutes() chi.Router {
	r := chi.NewRouter()

	// Public read path
	r.Get("/{id}/{kind}", s.ListPublicChildren)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)

		r.Post("/", s.CreateWebsite)
		r.Get("/", s.ListWebsites)
		r.Get("/{id}", s.GetWebsite)
		r.Put("/{id}", s.UpdateWebsite)
		r.Delete("/{id}", s.DeleteWebsite)

		r.With(s.uploadLimiter.Middleware).Post("/{id}/{kind}", s.CreateChild)
		r.Get("/{id}/{kind}/all", s.ListAllChildren)
		r.Post("/{id}/{kind}/reorder", s.ReorderChildren)
	})

	return r
}

func (s *Server) childRoutes(kind sitecontent.ChildKind) chi.Router {
	r := chi.NewRouter()
	r.Use(RequireAuth)

	r.Get("/{id}", s.GetChild(kind))
	r.With(s.uploadLimiter.Middleware).Put("/{id}", s.UpdateChild(kind))
	r.Delete("/{id}", s.DeleteChild(kind))
	return r
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports whether the record store answers
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "health check failed", "error", err)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, HealthResponse{Status: "ERROR", Message: "Database unavailable", Timestamp: s.now().UTC()})
		return
	}
	render.JSON(w, r, HealthResponse{Status: "OK", Message: "Server is running", Timestamp: s.now().UTC()})
}
