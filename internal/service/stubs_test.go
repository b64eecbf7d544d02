package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/session-guard/internal/domain"
	"github.com/sandeepkv93/session-guard/internal/repository"
	"github.com/sandeepkv93/session-guard/internal/security"
	"github.com/sandeepkv93/session-guard/internal/session"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *security.TokenCodec {
	t.Helper()
	codec, err := security.NewTokenCodec("HS256", testSigningKey, "")
	if err != nil {
		t.Fatalf("new token codec: %v", err)
	}
	return codec
}

type inMemorySessionRepo struct {
	mu      sync.Mutex
	rows    map[int64]domain.Session
	calls   []string
	failGet error
	failNew error
}

func newInMemorySessionRepo() *inMemorySessionRepo {
	return &inMemorySessionRepo{rows: map[int64]domain.Session{}}
}

func (r *inMemorySessionRepo) record(op string) {
	r.calls = append(r.calls, op)
}

func (r *inMemorySessionRepo) Create(_ context.Context, id, userID int64, values map[string]session.Value) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("create")
	if r.failNew != nil {
		return nil, r.failNew
	}
	encoded, err := session.EncodeValues(values)
	if err != nil {
		return nil, err
	}
	row := domain.Session{ID: id, UserID: userID, Values: encoded, CreatedAt: time.Now().UTC()}
	r.rows[id] = row
	return &row, nil
}

func (r *inMemorySessionRepo) Get(_ context.Context, id int64) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("get")
	if r.failGet != nil {
		return nil, r.failGet
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &row, nil
}

func (r *inMemorySessionRepo) Update(_ context.Context, id int64, values map[string]session.Value) error {
	encoded, err := session.EncodeValues(values)
	if err != nil {
		return err
	}
	return r.mutate("update", id, func(row *domain.Session) { row.Values = encoded })
}

func (r *inMemorySessionRepo) SetUser(_ context.Context, id, userID int64) error {
	return r.mutate("set_user", id, func(row *domain.Session) { row.UserID = userID })
}

func (r *inMemorySessionRepo) Revoke(_ context.Context, id int64) error {
	return r.mutate("revoke", id, func(row *domain.Session) { row.Revoked = true })
}

func (r *inMemorySessionRepo) mutate(op string, id int64, fn func(*domain.Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(op)
	row, ok := r.rows[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	fn(&row)
	r.rows[id] = row
	return nil
}

func (r *inMemorySessionRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *inMemorySessionRepo) ListByUser(_ context.Context, userID int64) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *inMemorySessionRepo) row(id int64) domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

type stubRoleRepository struct {
	mu     sync.Mutex
	roles  map[int64][]string
	err    error
	lookup int
}

func newStubRoleRepository() *stubRoleRepository {
	return &stubRoleRepository{roles: map[int64][]string{}}
}

func (r *stubRoleRepository) RolesForUser(_ context.Context, userID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup++
	if r.err != nil {
		return nil, r.err
	}
	return append([]string(nil), r.roles[userID]...), nil
}

func (r *stubRoleRepository) SetRoles(_ context.Context, userID int64, roles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.roles[userID] = append([]string(nil), roles...)
	return nil
}

func (r *stubRoleRepository) lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup
}

type stubUserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
	err    error
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{nextID: 1, users: map[int64]*domain.User{}}
}

func (r *stubUserRepository) FindByID(_ context.Context, id int64) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *stubUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *stubUserRepository) FindByName(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *stubUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *stubUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrUserExists
		}
	}
	user.ID = r.nextID
	r.nextID++
	cp := *user
	r.users[cp.ID] = &cp
	return nil
}

func (r *stubUserRepository) SetBanned(_ context.Context, id int64, banned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Banned = banned
	return nil
}

var errStoreDown = errors.New("no such table: sessions")
