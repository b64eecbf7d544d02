package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/sandeepkv93/session-guard/internal/session"
)

type recordingStore struct {
	mu      sync.Mutex
	revoked map[int64]bool
	err     error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{revoked: map[int64]bool{}}
}

func (s *recordingStore) Update(context.Context, int64, map[string]session.Value) error {
	return s.err
}

func (s *recordingStore) SetUser(context.Context, int64, int64) error { return s.err }

func (s *recordingStore) Revoke(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.revoked[id] = true
	return nil
}

func (s *recordingStore) isRevoked(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[id]
}

// tokenResolver maps raw tokens to fixed sessions and records what it saw.
type tokenResolver struct {
	sessions map[string]*session.Session
	seen     []string
}

func (r *tokenResolver) Resolve(_ context.Context, token string) *session.Session {
	r.seen = append(r.seen, token)
	if sess, ok := r.sessions[token]; ok {
		return sess
	}
	return session.NewEmpty()
}

type stubRoles struct {
	roles map[int64][]string
	err   error
}

func (s stubRoles) RolesForUser(_ context.Context, userID int64) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.roles[userID], nil
}

type stubLimiter struct {
	block bool
	err   error
	keys  []string
}

func (l *stubLimiter) OnRequest(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.block, l.err
}

var errBackendDown = errors.New("backend down")

func persisted(store session.Store, id, userID int64, values map[string]session.Value) *session.Session {
	return session.Hydrate(store, id, userID, false, time.Unix(1700000000, 0).UTC(), values)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
