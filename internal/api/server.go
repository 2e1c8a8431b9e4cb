// Package api exposes the job engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/drylogs/internal/config"
	"github.com/sells-group/drylogs/internal/engine"
)

// ActorHeader names the caller recorded on writes.
const ActorHeader = "X-Drylogs-Actor"

const (
	defaultActor = "api"
	maxBodyBytes = 8 << 20
)

// Server routes HTTP requests to an engine.Service.
type Server struct {
	svc     *engine.Service
	cfg     config.ServerConfig
	limiter *rate.Limiter
}

// New creates a Server. A zero RateLimit disables rate limiting.
func New(svc *engine.Service, cfg config.ServerConfig) *Server {
	s := &Server{svc: svc, cfg: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", ActorHeader},
		MaxAge:         300,
	}))
	r.Use(s.rateLimit)

	r.Get("/health", s.health)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Post("/", s.createJob)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Get("/events", s.listEvents)
			r.Get("/sizing", s.sizeJob)
			r.Get("/flags", s.detectFlags)
			r.Get("/priority", s.priority)
			r.Get("/curves", s.curves)
			r.Post("/transitions", s.transition)
			r.Post("/visits", s.addVisit)
			r.Post("/hold", s.hold)
			r.Delete("/hold", s.release)
			r.Post("/flags/{flagID}/resolve", s.resolveFlag)
			r.Post("/rescan", s.rescan)
		})
	})

	r.Post("/sizing", s.sizeDraft)
	r.Post("/import", s.importJobs)
	r.Get("/queue", s.queue)
	r.Get("/bottlenecks", s.bottlenecks)
	r.Get("/analytics", s.analytics)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func actor(r *http.Request) string {
	if a := r.Header.Get(ActorHeader); a != "" {
		return a
	}
	return defaultActor
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return eris.Wrapf(engine.ErrInvalid, "api: decode body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
