package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/internal/domain/queue"
	"github.com/FACorreiaa/statement-extractor/pkg/metrics"
)

// ServerConfig tunes the HTTP surface of the extraction service.
type ServerConfig struct {
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
	MaxUploadBytes     int64
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
}

// Server serves every remote strategy of a registry at
// POST /extract/{capability}.
type Server struct {
	capabilities map[string]extraction.Strategy
	text         document.TextExtractor
	events       *queue.Publisher
	metrics      metrics.Sink
	cfg          ServerConfig
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewServer creates the extraction service. events may be nil, in which case
// the service publishes no status events of its own.
func NewServer(
	registry *extraction.Registry,
	text document.TextExtractor,
	events *queue.Publisher,
	sink metrics.Sink,
	cfg ServerConfig,
	logger *slog.Logger,
) *Server {
	caps := make(map[string]extraction.Strategy)
	for _, id := range registry.IDs() {
		if !registry.IsRemote(id) {
			continue
		}
		s, err := registry.Strategy(id)
		if err != nil {
			continue
		}
		caps[string(id)] = s
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	limit := rate.Inf
	if cfg.RateLimitPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimitPerSecond)
	}
	burst := max(cfg.RateLimitBurst, 1)

	return &Server{
		capabilities: caps,
		text:         text,
		events:       events,
		metrics:      sink,
		cfg:          cfg,
		limiter:      rate.NewLimiter(limit, burst),
		logger:       logger,
	}
}

// Handler returns the routed, CORS-wrapped service.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/extract/{capability}", s.handleExtract)
	})

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	capability := chi.URLParam(r, "capability")
	strategy, ok := s.capabilities[capability]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown capability %q", capability))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile(FilePart)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusBadRequest, "no pdf file provided")
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "unsupported file type, expected a pdf")
		return
	}

	identity := r.FormValue(OriginalPathField)
	if identity == "" {
		s.logger.Warn("no original path provided, using file name",
			slog.String("filename", header.Filename))
		identity = header.Filename
	}

	ctx := r.Context()
	start := time.Now()
	extractor := string(strategy.ID())
	s.publish(func() { s.events.Started(ctx, identity, extractor) })

	table, err := s.extract(r, file, identity, strategy)
	if err != nil {
		msg := fmt.Sprintf("failed to process pdf: %v", err)
		s.logger.Error("remote extraction failed",
			slog.String("pdf_path", identity), slog.Any("error", err))
		s.metrics.RemoteProcessed(metrics.StatusError, time.Since(start))
		s.publish(func() { s.events.Failed(ctx, identity, extractor, msg) })
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	s.metrics.RemoteProcessed(metrics.StatusCompleted, time.Since(start))
	s.publish(func() { s.events.Completed(ctx, identity, extractor) })
	s.logger.Info("remote extraction completed",
		slog.String("pdf_path", identity),
		slog.Int("records", len(table.Records)),
		slog.Int("skipped", table.Skipped),
	)
	writeJSON(w, http.StatusOK, EncodeRecords(table))
}

func (s *Server) extract(r *http.Request, file io.Reader, identity string, strategy extraction.Strategy) (extraction.Table, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return extraction.Table{}, fmt.Errorf("failed to read upload: %w", err)
	}
	text, err := s.text.Text(r.Context(), document.Document{Path: identity, Content: content}, 0)
	if err != nil {
		return extraction.Table{}, err
	}
	return strategy.Extract(text), nil
}

func (s *Server) publish(fn func()) {
	if s.events != nil {
		fn()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
