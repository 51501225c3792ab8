package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/domainwatch/internal/activity"
	"github.com/vietddude/domainwatch/internal/catalog"
	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/freshness/swr"
	"github.com/vietddude/domainwatch/internal/freshness/ttl"
	"github.com/vietddude/domainwatch/internal/infra/fetch"
	"github.com/vietddude/domainwatch/internal/infra/storage"
	"github.com/vietddude/domainwatch/internal/infra/storage/memory"
	"github.com/vietddude/domainwatch/internal/refresh"
)

// ==================== FIXTURES ====================

type stubFetcher struct {
	data *fetch.SectionData
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, domainName string, section domain.Section) (*fetch.SectionData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type noopCounters struct{}

func (noopCounters) Touch(ctx context.Context, domainName string) error { return nil }
func (noopCounters) Drain(ctx context.Context) (map[string]int64, error) {
	return nil, nil
}

type okCheck struct{}

func (okCheck) Health(ctx context.Context) error { return nil }

type downCheck struct{}

func (downCheck) Health(ctx context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, fetcher fetch.Fetcher, checks map[string]HealthChecker) (*Server, *memory.MemoryStorage) {
	t.Helper()

	mem := memory.NewMemoryStorage()
	snapshots := memory.NewSnapshotRepo(mem)
	facts := memory.NewFactRepo(mem)

	pipeline := refresh.NewPipeline(fetcher, catalog.NewStore(), ttl.NewPolicy(ttl.Windows{}),
		snapshots, facts, nil)
	tracker := activity.NewTracker(noopCounters{}, memory.NewActivityRepo(mem), time.Hour, nil)

	s := NewServer(facts, snapshots, pipeline, swr.NewCoordinator(nil), tracker, checks,
		Config{Port: 0, StaleMaxAge: 24 * time.Hour}, nil)
	return s, mem
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

// ==================== PROVIDERS ====================

func TestHandleProviders_AllCategoriesPresent(t *testing.T) {
	s, mem := newTestServer(t, &stubFetcher{}, nil)

	classifiedAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	err := memory.NewFactRepo(mem).UpsertAll(context.Background(), []storage.ProviderFact{
		{
			Domain:       "example.com",
			Category:     domain.CategoryDNS,
			Provider:     &domain.ProviderRef{ID: "cloudflare", Name: "Cloudflare", Domain: "cloudflare.com"},
			ClassifiedAt: classifiedAt,
		},
		{
			Domain:       "example.com",
			Category:     domain.CategoryEmail,
			Provider:     nil, // classified, nothing matched
			ClassifiedAt: classifiedAt,
		},
	})
	if err != nil {
		t.Fatalf("UpsertAll: %v", err)
	}

	rec := doRequest(s, http.MethodGet, "/v1/domains/example.com/providers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Domain    string                                  `json:"domain"`
		Providers map[domain.Category]*domain.ProviderRef `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Domain != "example.com" {
		t.Errorf("domain = %q", resp.Domain)
	}
	// Every category appears, classified or not.
	for _, cat := range domain.Categories {
		if _, ok := resp.Providers[cat]; !ok {
			t.Errorf("category %q missing from response", cat)
		}
	}
	if p := resp.Providers[domain.CategoryDNS]; p == nil || p.ID != "cloudflare" {
		t.Errorf("dns provider = %+v, want cloudflare", p)
	}
	if p := resp.Providers[domain.CategoryEmail]; p != nil {
		t.Errorf("email provider = %+v, want null", p)
	}
	if p := resp.Providers[domain.CategoryHosting]; p != nil {
		t.Errorf("hosting provider = %+v, want null (never classified)", p)
	}
}

func TestHandleProviders_UnknownDomainIsEmptyNotError(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{}, nil)

	rec := doRequest(s, http.MethodGet, "/v1/domains/never-seen.example/providers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Providers map[domain.Category]*domain.ProviderRef `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Providers) != len(domain.Categories) {
		t.Errorf("got %d categories, want %d", len(resp.Providers), len(domain.Categories))
	}
	for cat, p := range resp.Providers {
		if p != nil {
			t.Errorf("category %q = %+v, want null", cat, p)
		}
	}
}

// ==================== SECTIONS ====================

func TestHandleSection_MissFetchesSynchronously(t *testing.T) {
	fetcher := &stubFetcher{data: &fetch.SectionData{
		Signals:   domain.Signals{Registrar: "Example Registrar Inc."},
		RecordTTL: time.Hour,
	}}
	s, _ := newTestServer(t, fetcher, nil)

	rec := doRequest(s, http.MethodGet, "/v1/domains/example.com/sections/registration")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Section domain.Section  `json:"section"`
		Data    json.RawMessage `json:"data"`
		Cached  bool            `json:"cached"`
		Stale   bool            `json:"stale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Section != domain.SectionRegistration || resp.Cached || resp.Stale {
		t.Errorf("response = %+v, want uncached fresh read", resp)
	}

	var data fetch.SectionData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode section data: %v", err)
	}
	if data.Signals.Registrar != "Example Registrar Inc." {
		t.Errorf("registrar = %q", data.Signals.Registrar)
	}
}

func TestHandleSection_FreshSnapshotServedFromCache(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("must not be called")}
	s, mem := newTestServer(t, fetcher, nil)

	now := time.Now()
	err := memory.NewSnapshotRepo(mem).Upsert(context.Background(), &storage.SectionSnapshot{
		Domain:    "example.com",
		Section:   domain.SectionDNS,
		Data:      []byte(`{"Signals":{}}`),
		FetchedAt: now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rec := doRequest(s, http.MethodGet, "/v1/domains/example.com/sections/dns")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Cached bool `json:"cached"`
		Stale  bool `json:"stale"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Cached || resp.Stale {
		t.Errorf("response = %+v, want cached fresh read", resp)
	}
}

func TestHandleSection_StaleServedWhileRevalidating(t *testing.T) {
	fetcher := &stubFetcher{data: &fetch.SectionData{RecordTTL: time.Hour}}
	s, mem := newTestServer(t, fetcher, nil)

	now := time.Now()
	memory.NewSnapshotRepo(mem).Upsert(context.Background(), &storage.SectionSnapshot{
		Domain:    "example.com",
		Section:   domain.SectionDNS,
		Data:      []byte(`{"Signals":{}}`),
		FetchedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	})

	rec := doRequest(s, http.MethodGet, "/v1/domains/example.com/sections/dns")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Cached bool `json:"cached"`
		Stale  bool `json:"stale"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Cached || !resp.Stale {
		t.Errorf("response = %+v, want stale cached read", resp)
	}

	// The background revalidation eventually replaces the snapshot.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := memory.NewSnapshotRepo(mem).Get(context.Background(), "example.com", domain.SectionDNS)
		if err == nil && snap.ExpiresAt.After(now) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("background revalidation never refreshed the snapshot")
}

func TestHandleSection_PermanentFetchErrorIs404(t *testing.T) {
	fetcher := &stubFetcher{err: &fetch.Error{Code: fetch.CodeNXDomain, Section: domain.SectionDNS}}
	s, _ := newTestServer(t, fetcher, nil)

	rec := doRequest(s, http.MethodGet, "/v1/domains/gone.example/sections/dns")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["error"] != fetch.CodeNXDomain {
		t.Errorf("error = %q, want nxdomain code", resp["error"])
	}
}

func TestHandleSection_TransientFetchErrorIs502(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("fetcher timeout")}
	s, _ := newTestServer(t, fetcher, nil)

	rec := doRequest(s, http.MethodGet, "/v1/domains/example.com/sections/dns")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestHandleSection_UnknownSectionIs404(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{}, nil)

	rec := doRequest(s, http.MethodGet, "/v1/domains/example.com/sections/bogus")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// ==================== HEALTH ====================

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{}, map[string]HealthChecker{
		"redis":    okCheck{},
		"database": okCheck{},
	})
	rec := doRequest(s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	s, _ = newTestServer(t, &stubFetcher{}, map[string]HealthChecker{
		"redis":    okCheck{},
		"database": downCheck{},
	})
	rec = doRequest(s, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var report map[string]string
	json.Unmarshal(rec.Body.Bytes(), &report)
	if report["redis"] != "ok" {
		t.Errorf("redis = %q, want ok", report["redis"])
	}
	if report["database"] == "ok" || report["database"] == "" {
		t.Errorf("database = %q, want failure detail", report["database"])
	}
}
