// Package web serves the rendered calendar over HTTP: a download endpoint
// for calendar apps, a JSON occurrence preview, and a health probe.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"uniscal/internal/config"
	"uniscal/internal/convert"
	"uniscal/internal/ics"
	appLog "uniscal/internal/log"
	"uniscal/internal/timetable"
)

// documentCacheTTL bounds how stale a lazily served document may get
// between scheduled rebuilds.
const documentCacheTTL = 5 * time.Minute

// Server rebuilds and serves the calendar document for one configured
// timetable input.
type Server struct {
	cfg *config.Config
	loc *time.Location
	mux *http.ServeMux

	// docMu guards docCache; rebuilds happen on demand, on TTL expiry,
	// and on the cron schedule.
	docMu    sync.RWMutex
	docCache *documentCache
}

// documentCache holds one completed conversion and its timestamp.
type documentCache struct {
	result    *convert.Result
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg: cfg,
		loc: cfg.Location(),
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
// Empty usernames or passwords count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic
// Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="uniscal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer runs the HTTP server until ctx is canceled, including the
// scheduled cache refresher.
func StartServer(ctx context.Context, cfg *config.Config) error {
	s := NewServer(cfg)
	if err := s.StartRefresher(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// StartRefresher schedules periodic rebuilds of the cached document until
// ctx is canceled. An empty schedule disables the refresher.
func (s *Server) StartRefresher(ctx context.Context) error {
	if s.cfg.RefreshCron == "" {
		return nil
	}

	c := cron.New(cron.WithLocation(s.loc))
	_, err := c.AddFunc(s.cfg.RefreshCron, func() {
		res, err := s.document(ctx, true)
		if err != nil {
			appLog.Error("scheduled rebuild failed", err, "input", s.cfg.Input)
			return
		}
		appLog.Info("scheduled rebuild completed",
			"events", len(res.Events),
			"skipped", res.Report.Skipped,
		)
	})
	if err != nil {
		return fmt.Errorf("web: bad refresh schedule %q: %w", s.cfg.RefreshCron, err)
	}

	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	appLog.Info("refresh schedule active", "cron", s.cfg.RefreshCron)
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/timetable.ics", s.handleCalendar)
	s.mux.HandleFunc("/api/preview", s.handlePreview)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// document returns the cached conversion result, rebuilding it when the
// cache is empty, stale, or force is set.
func (s *Server) document(ctx context.Context, force bool) (*convert.Result, error) {
	now := time.Now()

	if !force {
		s.docMu.RLock()
		dc := s.docCache
		s.docMu.RUnlock()
		if dc != nil && now.Sub(dc.updatedAt) < documentCacheTTL {
			return dc.result, nil
		}
	}

	res, err := s.rebuild(ctx)
	if err != nil {
		return nil, err
	}

	s.docMu.Lock()
	s.docCache = &documentCache{
		result:    res,
		updatedAt: time.Now(),
	}
	s.docMu.Unlock()

	return res, nil
}

// rebuild runs the full load-map-render pipeline against the configured
// input. The document is fully built and verified in memory before it
// replaces the cache, so handlers never see partial output.
func (s *Server) rebuild(ctx context.Context) (*convert.Result, error) {
	data, err := timetable.LoadSource(ctx, s.cfg.Input, s.cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	semesterEnd, err := s.cfg.SemesterEndTime(s.loc)
	if err != nil {
		return nil, err
	}

	return convert.BuildCalendar(data,
		convert.Options{
			SemesterEnd: semesterEnd,
			Location:    s.loc,
		},
		ics.BuilderOptions{
			ProdID:    s.cfg.ProdID,
			UIDDomain: s.cfg.UIDDomain,
		},
	)
}

// handleCalendar serves the rendered document for download.
//
// GET /timetable.ics
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	res, err := s.document(r.Context(), false)
	if err != nil {
		appLog.Error("calendar build failed", err, "input", s.cfg.Input)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}

	filename := filepath.Base(s.cfg.Output)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Document)
}

// previewResponse is the JSON response shape for /api/preview.
type previewResponse struct {
	Occurrences []occurrenceDTO `json:"occurrences"`
	Truncated   []string        `json:"truncated,omitempty"`
	RangeStart  time.Time       `json:"range_start"`
	RangeEnd    time.Time       `json:"range_end"`
	Timezone    string          `json:"timezone"`
	Skipped     int             `json:"skipped_lessons"`
}

// occurrenceDTO is a JSON-friendly view of one occurrence.
type occurrenceDTO struct {
	Summary  string    `json:"summary"`
	Location string    `json:"location"`
	Kind     string    `json:"kind"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// handlePreview returns the concrete occurrences of all mapped lessons
// within a requested window.
//
// GET /api/preview?days=N (default: config horizon_days)
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}

	res, err := s.document(r.Context(), false)
	if err != nil {
		appLog.Error("preview build failed", err, "input", s.cfg.Input)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}

	now := time.Now().In(s.loc)
	rangeEnd := now.AddDate(0, 0, days)

	expanded, err := ics.Expand(res.Events, ics.ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      now,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		appLog.Error("preview expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(expanded.Occurrences))
	for _, occ := range expanded.Occurrences {
		dtos = append(dtos, occurrenceDTO{
			Summary:  occ.Summary,
			Location: occ.Location,
			Kind:     occ.Kind,
			Start:    occ.Start,
			End:      occ.End,
		})
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Occurrences: dtos,
		Truncated:   expanded.Truncated,
		RangeStart:  now,
		RangeEnd:    rangeEnd,
		Timezone:    s.loc.String(),
		Skipped:     res.Report.Skipped,
	})
}

// refreshResponse is the JSON response shape for /api/refresh.
type refreshResponse struct {
	Events  int `json:"events"`
	Skipped int `json:"skipped_lessons"`
}

// handleRefresh forces a rebuild of the cached document.
//
// POST /api/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	res, err := s.document(r.Context(), true)
	if err != nil {
		appLog.Error("forced rebuild failed", err, "input", s.cfg.Input)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Events:  len(res.Events),
		Skipped: res.Report.Skipped,
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
