// Package historytest provides an in-memory change-history backend for
// tests. It exposes the same REST surface as the production backend,
// computes aggregates with the same domain functions, and can inject
// failures and credential checks.
package historytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacktrail/stacktrail/internal/domain"
)

// Endpoint names accepted by Requests and LastQuery.
const (
	EndpointRecent      = "recent"
	EndpointDaily       = "daily"
	EndpointVelocity    = "velocity"
	EndpointMostChanged = "most-changed"
	EndpointHistory     = "history"
)

// Server is a fake change-history backend bound to a local listener.
type Server struct {
	mu        sync.Mutex
	records   []domain.ChangeRecord
	token     string
	failNext  int
	requests  map[string]int
	lastQuery map[string]url.Values
	now       func() time.Time

	httpSrv *httptest.Server
}

// New starts the fake backend. Callers must Close it.
func New() *Server {
	s := &Server{
		requests:  make(map[string]int),
		lastQuery: make(map[string]url.Values),
		now:       time.Now,
	}

	r := chi.NewRouter()
	r.Get("/v1/changes/recent", s.handleRecent)
	r.Get("/v1/changes/summary/daily", s.handleDailySummary)
	r.Get("/v1/changes/velocity", s.handleVelocity)
	r.Get("/v1/changes/most-changed", s.handleMostChanged)
	r.Get("/v1/resources/{resourceType}/{resourceID}/history", s.handleResourceHistory)

	s.httpSrv = httptest.NewServer(r)
	return s
}

// URL returns the backend's base URL.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// Close shuts the listener down.
func (s *Server) Close() {
	s.httpSrv.Close()
}

// Seed replaces the backend's record set.
func (s *Server) Seed(records ...domain.ChangeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = slices.Clone(records)
}

// RequireToken makes every endpoint demand the given bearer token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailNext makes the next n requests fail with 503 before any handling.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// SetNow pins the clock used for window arithmetic.
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Requests returns how many calls the named endpoint has served, including
// injected failures.
func (s *Server) Requests(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[endpoint]
}

// LastQuery returns the query string of the endpoint's most recent call.
func (s *Server) LastQuery(endpoint string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery[endpoint]
}

// gate records the request and applies failure injection and auth. It
// reports whether the handler should proceed.
func (s *Server) gate(w http.ResponseWriter, r *http.Request, endpoint string) bool {
	s.mu.Lock()
	s.requests[endpoint]++
	s.lastQuery[endpoint] = r.URL.Query()
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	token := s.token
	s.mu.Unlock()

	if fail {
		writeError(w, http.StatusServiceUnavailable, "injected failure")
		return false
	}
	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return false
	}
	return true
}

func (s *Server) snapshot() ([]domain.ChangeRecord, func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records), s.now
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if !s.gate(w, r, EndpointRecent) {
		return
	}

	hours := queryInt(r, "hours", 24)
	if hours <= 0 {
		writeError(w, http.StatusBadRequest, "hours must be positive")
		return
	}
	scope := r.URL.Query().Get("domain")

	records, now := s.snapshot()
	cutoff := now().Add(-time.Duration(hours) * time.Hour)

	out := make([]domain.ChangeRecord, 0, len(records))
	for _, rec := range records {
		if rec.EffectiveTime().Before(cutoff) {
			continue
		}
		if scope != "" && rec.DomainGroup() != scope {
			continue
		}
		out = append(out, rec)
	}
	writeJSON(w, map[string]any{"records": out})
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	if !s.gate(w, r, EndpointDaily) {
		return
	}

	days := queryInt(r, "days", 7)
	if days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be positive")
		return
	}

	records, now := s.snapshot()
	writeJSON(w, map[string]any{"dailyBreakdown": domain.DailySummary(records, days, now())})
}

func (s *Server) handleVelocity(w http.ResponseWriter, r *http.Request) {
	if !s.gate(w, r, EndpointVelocity) {
		return
	}

	records, _ := s.snapshot()
	writeJSON(w, map[string]any{"velocityStats": domain.VelocityStats(records)})
}

func (s *Server) handleMostChanged(w http.ResponseWriter, r *http.Request) {
	if !s.gate(w, r, EndpointMostChanged) {
		return
	}

	limit := queryInt(r, "limit", 10)
	scope := r.URL.Query().Get("domain")

	records, _ := s.snapshot()
	scoped := records
	if scope != "" {
		scoped = make([]domain.ChangeRecord, 0, len(records))
		for _, rec := range records {
			if rec.DomainGroup() == scope {
				scoped = append(scoped, rec)
			}
		}
	}

	// Return the records belonging to the top-ranked resources, the way the
	// production backend shapes this response.
	type resourceKey struct{ typ, id string }
	top := make(map[resourceKey]bool)
	for _, act := range domain.MostChanged(scoped, limit) {
		top[resourceKey{typ: act.ResourceType, id: act.ResourceID}] = true
	}

	out := make([]domain.ChangeRecord, 0, len(scoped))
	for _, rec := range scoped {
		if top[resourceKey{typ: rec.ResourceType, id: rec.ResourceID}] {
			out = append(out, rec)
		}
	}
	writeJSON(w, map[string]any{"records": out})
}

func (s *Server) handleResourceHistory(w http.ResponseWriter, r *http.Request) {
	if !s.gate(w, r, EndpointHistory) {
		return
	}

	resourceType := chi.URLParam(r, "resourceType")
	resourceID := chi.URLParam(r, "resourceID")

	records, _ := s.snapshot()
	out := make([]domain.ChangeRecord, 0)
	for _, rec := range records {
		if rec.ResourceType == resourceType && rec.ResourceID == resourceID {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		writeError(w, http.StatusNotFound, "history tracking not enabled for this resource")
		return
	}

	// The production backend persists timelines in sequence order.
	sort.Slice(out, func(i, j int) bool { return out[i].ChangeSequence < out[j].ChangeSequence })

	writeJSON(w, map[string]any{"records": out})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
