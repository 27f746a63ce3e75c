package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"techbiz/internal/auth"
	"techbiz/internal/cache"
	"techbiz/internal/log"
	"techbiz/internal/middleware/ratelimit"
	"techbiz/internal/middleware/security"
	"techbiz/internal/middleware/trace"
	"techbiz/internal/services"
	appweb "techbiz/web"
)

const (
	analyticsCacheSize = 100
	chartCacheSize     = 200
	staticMaxAge       = 3600
)

// Options tunes optional server behaviour. The zero value is usable.
type Options struct {
	// AnalyticsCacheTTL bounds how long a computed summary is reused for the
	// same store version and filter. Zero disables caching.
	AnalyticsCacheTTL time.Duration
	// RequestsPerMinute limits mutating requests per client.
	RequestsPerMinute int
	// Readiness is an extra dependency check reported by /readyz.
	Readiness func(ctx context.Context) error
	Logger    *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	records   *services.RecordService
	users     *auth.Directory
	logger    *log.Logger
	readiness func(ctx context.Context) error

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware

	analyticsCache *cache.LRUCache[analyticsResult]
	chartCache     *cache.LRUCache[[]byte]
	cacheManager   *cache.Manager
	flight         singleflight.Group

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime         time.Time
	recordsCreated atomic.Int64
	recordsUpdated atomic.Int64
	recordsDeleted atomic.Int64
	exports        atomic.Int64
	loginFailures  atomic.Int64
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, records *services.RecordService, users *auth.Directory, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP, Handler: slog.Default().Handler()})
	}
	ttl := opts.AnalyticsCacheTTL
	if ttl <= 0 {
		// a TTL of one nanosecond expires entries before any reuse
		ttl = time.Nanosecond
	}

	detector := security.NewDetector()
	s := &Server{
		records:          records,
		users:            users,
		logger:           logger,
		readiness:        opts.Readiness,
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		analyticsCache:   cache.NewLRUCache[analyticsResult](analyticsCacheSize, ttl),
		chartCache:       cache.NewLRUCache[[]byte](chartCacheSize, ttl),
		cacheManager:     cache.NewManager(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.cacheManager.Register(s.analyticsCache)
	s.cacheManager.Register(s.chartCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.handleGrid)
	mux.HandleFunc("GET /ui/records", s.handleRecordsPartial)
	mux.HandleFunc("POST /records", s.handleAddRecord)
	mux.HandleFunc("POST /records/{id}/cell", s.handleEditCell)
	mux.HandleFunc("POST /records/{id}/confirms", s.handleSetConfirms)
	mux.HandleFunc("DELETE /records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("POST /records/{id}/delete", s.handleDeleteRecord)

	mux.HandleFunc("GET /analytics", s.handleAnalytics)
	mux.HandleFunc("GET /analytics/charts/{file}", s.handleChart)

	mux.HandleFunc("GET /export/records.csv", s.handleExportCSV)
	mux.HandleFunc("GET /export/records.xlsx", s.handleExportXLSX)

	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimit, http.MethodPost, http.MethodDelete)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = users.Gate(handler)
	handler = security.NoStoreMiddleware(handler)
	handler = limit(handler)
	handler = detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	errorFragment(http.StatusTooManyRequests, "Too many changes, please slow down").Write(w)
}

// execute renders a named template into a string so failures can still
// produce a clean error response.
func (s *Server) execute(name string, data any) (string, error) {
	if s.templates == nil {
		return "", errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	html, err := s.execute(name, data)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name,
			"error_type", log.ErrorTypeInternal)
		http.Error(w, "error rendering page", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(html).Write(w)
}
