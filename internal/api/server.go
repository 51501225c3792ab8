// Package api serves the read path: classified providers and section
// snapshots, the latter through stale-while-revalidate so slow upstream
// authorities never sit on the request path once a snapshot exists.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/domainwatch/internal/activity"
	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/freshness/swr"
	"github.com/vietddude/domainwatch/internal/infra/fetch"
	"github.com/vietddude/domainwatch/internal/infra/storage"
	"github.com/vietddude/domainwatch/internal/refresh"
)

// HealthChecker reports whether one dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config tunes the API server.
type Config struct {
	Port int `yaml:"port"`

	// StaleMaxAge is the staleness budget on section reads: stale snapshots
	// older than this are refetched synchronously. Zero = serve any stale.
	StaleMaxAge time.Duration `yaml:"stale_max_age"`
}

// Server exposes the HTTP read API plus health and metrics endpoints.
type Server struct {
	facts     storage.ProviderFactRepository
	snapshots storage.SnapshotRepository
	pipeline  *refresh.Pipeline
	swr       *swr.Coordinator
	tracker   *activity.Tracker
	checks    map[string]HealthChecker
	cfg       Config
	log       *slog.Logger
	server    *http.Server
}

// NewServer creates the API server.
func NewServer(
	facts storage.ProviderFactRepository,
	snapshots storage.SnapshotRepository,
	pipeline *refresh.Pipeline,
	coordinator *swr.Coordinator,
	tracker *activity.Tracker,
	checks map[string]HealthChecker,
	cfg Config,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		facts:     facts,
		snapshots: snapshots,
		pipeline:  pipeline,
		swr:       coordinator,
		tracker:   tracker,
		checks:    checks,
		cfg:       cfg,
		log:       log,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: mux,
		},
	}

	mux.HandleFunc("GET /v1/domains/{domain}/providers", s.handleProviders)
	mux.HandleFunc("GET /v1/domains/{domain}/sections/{section}", s.handleSection)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type providerResponse struct {
	Domain       string                                  `json:"domain"`
	Providers    map[domain.Category]*domain.ProviderRef `json:"providers"`
	ClassifiedAt map[domain.Category]time.Time           `json:"classified_at"`
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	domainName := r.PathValue("domain")
	if domainName == "" {
		writeError(w, http.StatusBadRequest, "missing domain")
		return
	}
	s.tracker.Touch(r.Context(), domainName)

	facts, err := s.facts.GetAll(r.Context(), domainName)
	if err != nil {
		s.log.Error("Failed to read provider facts", "domain", domainName, "error", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	resp := providerResponse{
		Domain:       domainName,
		Providers:    make(map[domain.Category]*domain.ProviderRef, len(domain.Categories)),
		ClassifiedAt: make(map[domain.Category]time.Time, len(facts)),
	}
	// Every category is present in the response; unclassified ones are null.
	for _, cat := range domain.Categories {
		resp.Providers[cat] = nil
	}
	for _, f := range facts {
		resp.Providers[f.Category] = f.Provider
		resp.ClassifiedAt[f.Category] = f.ClassifiedAt
	}

	writeJSON(w, http.StatusOK, resp)
}

type sectionResponse struct {
	Domain    string          `json:"domain"`
	Section   domain.Section  `json:"section"`
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
	Cached    bool            `json:"cached"`
	Stale     bool            `json:"stale"`
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	domainName := r.PathValue("domain")
	section := domain.Section(r.PathValue("section"))
	if !section.Valid() {
		writeError(w, http.StatusNotFound, "unknown section")
		return
	}
	s.tracker.Touch(r.Context(), domainName)

	getCached := func(ctx context.Context) (swr.Record[*storage.SectionSnapshot], error) {
		snap, err := s.snapshots.Get(ctx, domainName, section)
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return swr.Record[*storage.SectionSnapshot]{}, nil
		}
		if err != nil {
			return swr.Record[*storage.SectionSnapshot]{}, err
		}
		return swr.Record[*storage.SectionSnapshot]{
			Data:      snap,
			FetchedAt: snap.FetchedAt,
			Found:     true,
			Stale:     snap.Stale(time.Now()),
		}, nil
	}
	fetchFresh := func(ctx context.Context) (*storage.SectionSnapshot, error) {
		return s.pipeline.RefreshSection(ctx, domainName, section)
	}

	key := "section:" + domain.TaskKey(domainName, section)
	out := swr.Read(r.Context(), s.swr, key, getCached, fetchFresh, swr.Options{MaxAge: s.cfg.StaleMaxAge})
	if out.Err != nil {
		var ferr *fetch.Error
		if errors.As(out.Err, &ferr) {
			writeError(w, http.StatusNotFound, ferr.Code)
			return
		}
		s.log.Error("Section fetch failed", "domain", domainName, "section", section, "error", out.Err)
		writeError(w, http.StatusBadGateway, "upstream fetch failed")
		return
	}

	writeJSON(w, http.StatusOK, sectionResponse{
		Domain:    domainName,
		Section:   section,
		Data:      out.Data.Data,
		FetchedAt: out.Data.FetchedAt,
		Cached:    out.Cached,
		Stale:     out.Stale,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	report := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.Health(r.Context()); err != nil {
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			report[name] = "ok"
		}
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
