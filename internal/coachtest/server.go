// Package coachtest runs an in-process coach service for tests.
package coachtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"wellnav/internal/coach"
)

const maxRequestBody = 1 << 20

// Reply computes the status and JSON body for one /coach call.
type Reply func(req coach.CoachRequest) (status int, body any)

// Server is a fake coach service backed by httptest.
type Server struct {
	URL string

	srv *httptest.Server

	mu           sync.Mutex
	coachCalls   []coach.CoachRequest
	syncCalls    []coach.SyncRequest
	requestIDs   []string
	reply        Reply
	rawCoach     *rawReply
	syncStatus   int
	healthStatus int
	gate         <-chan struct{}
	entered      chan struct{}
}

type rawReply struct {
	status int
	body   string
}

// Option configures a Server.
type Option func(*Server)

// WithCoachReply overrides the keyword rules used to answer /coach.
func WithCoachReply(reply Reply) Option {
	return func(s *Server) { s.reply = reply }
}

// WithCoachJSON makes /coach answer with a fixed status and raw body.
func WithCoachJSON(status int, body string) Option {
	return func(s *Server) { s.rawCoach = &rawReply{status: status, body: body} }
}

// WithSyncStatus sets the status code returned by /sync.
func WithSyncStatus(code int) Option {
	return func(s *Server) { s.syncStatus = code }
}

// WithHealthStatus sets the status code returned by /health.
func WithHealthStatus(code int) Option {
	return func(s *Server) { s.healthStatus = code }
}

// WithCoachGate holds every /coach call until gate is closed or the client
// goes away. Entered fires once per held call.
func WithCoachGate(gate <-chan struct{}) Option {
	return func(s *Server) { s.gate = gate }
}

// New starts a server and closes it when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		reply:        Rules,
		syncStatus:   http.StatusOK,
		healthStatus: http.StatusOK,
		entered:      make(chan struct{}, 16),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/coach", s.handleCoach)
	r.Post("/sync", s.handleSync)

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Client returns an http.Client whose idle connections are closed with the
// server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// Entered signals each time a gated /coach call starts waiting.
func (s *Server) Entered() <-chan struct{} {
	return s.entered
}

// CoachRequests returns the decoded /coach bodies received so far.
func (s *Server) CoachRequests() []coach.CoachRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coach.CoachRequest(nil), s.coachCalls...)
}

// SyncRequests returns the decoded /sync bodies received so far.
func (s *Server) SyncRequests() []coach.SyncRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coach.SyncRequest(nil), s.syncCalls...)
}

// RequestIDs returns the X-Request-ID header of every request, in order.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}

func (s *Server) recordID(r *http.Request) {
	s.mu.Lock()
	s.requestIDs = append(s.requestIDs, r.Header.Get("X-Request-ID"))
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.recordID(r)
	if s.healthStatus != http.StatusOK {
		http.Error(w, "unavailable", s.healthStatus)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCoach(w http.ResponseWriter, r *http.Request) {
	s.recordID(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()

	var req coach.CoachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusUnprocessableEntity)
		return
	}
	s.mu.Lock()
	s.coachCalls = append(s.coachCalls, req)
	s.mu.Unlock()

	if s.gate != nil {
		s.entered <- struct{}{}
		select {
		case <-s.gate:
		case <-r.Context().Done():
			return
		}
	}

	if s.rawCoach != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.rawCoach.status)
		_, _ = w.Write([]byte(s.rawCoach.body))
		return
	}
	status, body := s.reply(req)
	writeJSON(w, status, body)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.recordID(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()

	var req coach.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusUnprocessableEntity)
		return
	}
	s.mu.Lock()
	s.syncCalls = append(s.syncCalls, req)
	s.mu.Unlock()

	if s.syncStatus < 200 || s.syncStatus >= 300 {
		http.Error(w, "sync rejected", s.syncStatus)
		return
	}
	writeJSON(w, s.syncStatus, map[string]string{"status": "synced"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
