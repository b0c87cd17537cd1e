package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/docutag/linkbender"
	"github.com/docutag/linkbender/metrics"
	"github.com/docutag/linkbender/models"
	"github.com/docutag/linkbender/storage"
	"github.com/docutag/linkbender/tags"
	"github.com/docutag/linkbender/urlnorm"
)

const (
	// searchLimit caps tag search results
	searchLimit = 4
	// relatedLimit caps suggested related tags
	relatedLimit = 5
	// scrapeTimeout bounds a single scrape request
	scrapeTimeout = 10 * time.Minute
)

// Server represents the API server
type Server struct {
	orchestrator *linkbender.Orchestrator
	store        linkbender.Store
	metrics      *metrics.Metrics
	addr         string
	server       *http.Server
	router       chi.Router
	corsEnabled  bool
}

// Config contains server configuration
type Config struct {
	Addr        string
	CORSEnabled bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		CORSEnabled: true,
	}
}

// NewServer creates a new API server around an orchestrator. m may be nil.
func NewServer(config Config, orchestrator *linkbender.Orchestrator, m *metrics.Metrics) *Server {
	s := &Server{
		orchestrator: orchestrator,
		store:        orchestrator.Store(),
		metrics:      m,
		addr:         config.Addr,
		router:       chi.NewRouter(),
		corsEnabled:  config.CORSEnabled,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // Allow time for long-running scrapes
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.cors)
	s.router.Use(s.logging)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/scrape", s.handleScrape)
	s.router.Get("/custom-summary", s.handleCustomSummary)
	s.router.Get("/scrapes", s.handleListScrapes)
	s.router.Get("/scrapes/{id}/content", s.handleContent)
	s.router.Get("/tags", s.handleTags)
	s.router.Get("/search-by-tags", s.handleSearchByTags)
	s.router.Get("/check-url", s.handleCheckURL)
	s.router.Get("/get-cached", s.handleGetCached)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops accepting requests. The store is owned by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// cors allows browser extensions and other origins to call the API
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// logging records each request (health checks excluded) and its duration
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveHTTP(r.Method, route, status, duration)

		if r.URL.Path == "/health" {
			return
		}
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"duration":   duration.String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request completed")
	})
}

// handleHealth reports store connectivity and the record count
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	count, err := s.store.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get count")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"count":  count,
		"time":   time.Now(),
	})
}

// handleScrape runs the pipeline for ?url=, reusing the cache unless ?force=true
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	ctx, cancel := context.WithTimeout(r.Context(), scrapeTimeout)
	defer cancel()

	result, err := s.orchestrator.Scrape(ctx, r.URL.Query().Get("url"), linkbender.ScrapeOptions{Force: force})
	respondScrape(w, result, err)
}

// handleCustomSummary runs the pipeline with summary preferences; the cache is never consulted
func (s *Server) handleCustomSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	prefs := models.DefaultPreferences()
	if length := query.Get("length"); length != "" {
		prefs.Length = length
	}
	if style := query.Get("style"); style != "" {
		prefs.Style = style
	}

	ctx, cancel := context.WithTimeout(r.Context(), scrapeTimeout)
	defer cancel()

	result, err := s.orchestrator.Scrape(ctx, query.Get("url"), linkbender.ScrapeOptions{Preferences: &prefs})
	respondScrape(w, result, err)
}

// handleListScrapes returns every record newest first with a short content preview
func (s *Server) handleListScrapes(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRecords(r.Context(), 0)
	if err != nil {
		log.WithError(err).Error("failed to list scrapes")
		respondStatusError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  models.StatusSuccess,
		"scrapes": previews(records),
		"count":   len(records),
	})
}

// handleContent serves the archived full text of a record
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	archive := s.orchestrator.Archive()
	if archive == nil {
		respondError(w, http.StatusNotFound, "content archive not configured")
		return
	}

	record, err := s.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if record == nil {
		respondError(w, http.StatusNotFound, "scrape not found")
		return
	}
	if record.ArchiveKey == "" {
		respondError(w, http.StatusNotFound, "content file not available")
		return
	}

	text, err := archive.ReadText(r.Context(), record.ArchiveKey)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "content file not available")
		return
	}
	if err != nil {
		log.WithError(err).WithField("key", record.ArchiveKey).Error("failed to read archived content")
		respondError(w, http.StatusInternalServerError, "failed to read content")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

// handleTags returns the tag ledger
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	entries, err := s.orchestrator.Ledger().List(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to list tags")
		respondStatusError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tags": entries,
	})
}

// handleSearchByTags finds the newest records carrying any of ?tags=a,b
func (s *Server) handleSearchByTags(w http.ResponseWriter, r *http.Request) {
	searched := tags.Dedup(strings.Split(r.URL.Query().Get("tags"), ","))
	if len(searched) == 0 {
		respondStatusError(w, http.StatusUnprocessableEntity, "tags parameter is required")
		return
	}

	records, err := s.store.FindByTags(r.Context(), searched, searchLimit)
	if err != nil {
		log.WithError(err).Error("failed to search by tags")
		respondStatusError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := previews(records)
	respondJSON(w, http.StatusOK, models.SearchResult{
		Status:       models.StatusSuccess,
		Results:      results,
		Count:        len(results),
		SearchedTags: searched,
		RelatedTags:  tags.Related(records, searched, relatedLimit),
	})
}

// handleCheckURL reports whether ?url= has been scraped before
func (s *Server) handleCheckURL(w http.ResponseWriter, r *http.Request) {
	record, ok := s.latest(w, r)
	if !ok {
		return
	}

	if record == nil {
		respondJSON(w, http.StatusOK, models.CheckResult{Exists: false})
		return
	}

	respondJSON(w, http.StatusOK, models.CheckResult{
		Exists:  true,
		Message: fmt.Sprintf("This URL was previously scraped on %s", record.Timestamp.Format(models.TimestampLayout)),
	})
}

// CachedEntry is the annotation part of a get-cached response
type CachedEntry struct {
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags"`
	Grade     string    `json:"grade"`
	Badge     string    `json:"badge"`
	Timestamp time.Time `json:"timestamp"`
}

// CachedResponse is returned by get-cached
type CachedResponse struct {
	Status   string      `json:"status"`
	Response CachedEntry `json:"response"`
	Message  string      `json:"message"`
	Cached   bool        `json:"cached"`
}

// handleGetCached returns the newest record for ?url= without scraping
func (s *Server) handleGetCached(w http.ResponseWriter, r *http.Request) {
	record, ok := s.latest(w, r)
	if !ok {
		return
	}

	if record == nil {
		respondStatusError(w, http.StatusNotFound, "URL not found in cache")
		return
	}

	respondJSON(w, http.StatusOK, CachedResponse{
		Status: models.StatusSuccess,
		Response: CachedEntry{
			URL:       record.URL,
			Summary:   record.Summary,
			Tags:      record.Tags,
			Grade:     record.Grade,
			Badge:     record.Badge,
			Timestamp: record.Timestamp,
		},
		Message: linkbender.CachedMessage(record),
		Cached:  true,
	})
}

// latest looks up the newest record under the cache key of ?url=. It writes
// the error response itself and returns ok=false when the lookup cannot run.
func (s *Server) latest(w http.ResponseWriter, r *http.Request) (*models.ScrapeRecord, bool) {
	key, err := urlnorm.CacheKey(r.URL.Query().Get("url"))
	if err != nil {
		respondStatusError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}

	record, err := s.store.LatestByURL(r.Context(), key)
	if err != nil {
		log.WithError(err).WithField("url", key).Error("failed to look up cached record")
		respondStatusError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve cached data: %v", err))
		return nil, false
	}
	return record, true
}

func previews(records []*models.ScrapeRecord) []*models.ScrapeRecord {
	out := make([]*models.ScrapeRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.Preview(models.ListPreviewLen))
	}
	return out
}

// respondScrape writes a pipeline payload. Invalid input is a 422; every
// other failure keeps HTTP 200 with status "error" in the body.
func respondScrape(w http.ResponseWriter, result *models.ScrapeResult, err error) {
	status := http.StatusOK
	if linkbender.IsKind(err, linkbender.KindInvalidInput) {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, result)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondStatusError writes an error in the {status, error} shape legacy clients expect
func respondStatusError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"status": models.StatusError,
		"error":  message,
	})
}
