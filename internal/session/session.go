package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	GuestUserID int64 = -1
	BootstrapID int64 = -1
)

// Reserved claim keys that never become session values.
const (
	ClaimType      = "type"
	ClaimCreated   = "created"
	ClaimSessionID = "session_id"

	TypeBootstrap = "bootstrap"
)

type Kind uint8

const (
	KindPersisted Kind = iota + 1
	KindBootstrap
)

func (k Kind) String() string {
	switch k {
	case KindPersisted:
		return "persisted"
	case KindBootstrap:
		return "bootstrap"
	default:
		return "unknown"
	}
}

// Store is the write-back side of the session store used by Sync.
type Store interface {
	Update(ctx context.Context, sessionID int64, values map[string]Value) error
	SetUser(ctx context.Context, sessionID int64, userID int64) error
	Revoke(ctx context.Context, sessionID int64) error
}

type Session struct {
	kind    Kind
	id      int64
	created time.Time
	store   Store

	userID  Tracked[int64]
	revoked Tracked[bool]
	values  Tracked[map[string]Value]
}

// Hydrate builds a persisted session from stored state. Nothing is marked dirty.
func Hydrate(store Store, id, userID int64, revoked bool, created time.Time, values map[string]Value) *Session {
	s := &Session{kind: KindPersisted, id: id, created: created, store: store}
	if values == nil {
		values = map[string]Value{}
	}
	s.userID.Load(userID)
	s.revoked.Load(revoked)
	s.values.Load(values)
	return s
}

// NewBootstrap builds a claims-backed session. Claims that cannot be represented
// as a Value are dropped.
func NewBootstrap(claims map[string]any) *Session {
	s := &Session{kind: KindBootstrap, id: BootstrapID}
	values := make(map[string]Value, len(claims))
	for k, raw := range claims {
		switch k {
		case ClaimType, ClaimSessionID:
			continue
		case ClaimCreated:
			if v, ok := ValueOf(raw); ok {
				if ts, ok := v.AsInt(); ok {
					s.created = time.Unix(ts, 0).UTC()
				}
			}
			continue
		}
		if v, ok := ValueOf(raw); ok {
			values[k] = v
		}
	}
	s.userID.Load(GuestUserID)
	s.values.Load(values)
	return s
}

// NewEmpty is the session used when no usable credential or record exists.
func NewEmpty() *Session {
	return NewBootstrap(nil)
}

func (s *Session) Kind() Kind         { return s.kind }
func (s *Session) ID() int64          { return s.id }
func (s *Session) Created() time.Time { return s.created }
func (s *Session) UserID() int64      { return s.userID.Get() }
func (s *Session) Revoked() bool      { return s.revoked.Get() }
func (s *Session) IsBootstrap() bool  { return s.kind == KindBootstrap }
func (s *Session) IsPersisted() bool  { return s.kind == KindPersisted }
func (s *Session) SetUserID(id int64) { s.userID.Set(id) }
func (s *Session) Len() int           { return len(s.values.Get()) }

func (s *Session) Has(key string) bool {
	_, ok := s.values.Get()[key]
	return ok
}

// Empty reports a session with no usable identity.
func (s *Session) Empty() bool {
	return s.UserID() == GuestUserID && s.Len() == 0
}

// Revoke is one-way; there is no un-revoke.
func (s *Session) Revoke() {
	if s.revoked.Get() {
		return
	}
	s.revoked.Set(true)
}

func (s *Session) Get(key string) (Value, bool) {
	v, ok := s.values.Get()[key]
	return v, ok
}

func (s *Session) GetString(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.AsString()
	return str
}

func (s *Session) Set(key string, v Value) {
	s.values.Get()[key] = v
	s.values.MarkChanged()
}

func (s *Session) Delete(key string) {
	values := s.values.Get()
	if _, ok := values[key]; !ok {
		return
	}
	delete(values, key)
	s.values.MarkChanged()
}

func (s *Session) Keys() []string {
	keys := make([]string, 0, s.Len())
	for k := range s.values.Get() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the current values.
func (s *Session) Values() map[string]Value {
	return cloneValues(s.values.Get())
}

func (s *Session) Dirty() bool {
	return s.values.Changed() || s.userID.Changed() || s.revoked.Changed()
}

// Sync flushes dirty fields through the store. Each field is its own store call;
// the calls are independent and all complete before Sync returns. A field's flag is
// cleared only after its flush succeeds. Bootstrap sessions never reach the store.
func (s *Session) Sync(ctx context.Context) error {
	if !s.Dirty() {
		return nil
	}
	if s.kind == KindBootstrap {
		s.values.Clear()
		s.userID.Clear()
		s.revoked.Clear()
		return nil
	}
	if s.store == nil {
		return fmt.Errorf("sync session %d: no store bound", s.id)
	}

	var (
		g                             errgroup.Group
		valuesErr, userErr, revokeErr error
	)
	if s.values.Changed() {
		snapshot := cloneValues(s.values.Get())
		g.Go(func() error {
			if valuesErr = s.store.Update(ctx, s.id, snapshot); valuesErr != nil {
				valuesErr = fmt.Errorf("update session values: %w", valuesErr)
				return valuesErr
			}
			s.values.Clear()
			return nil
		})
	}
	if s.userID.Changed() {
		userID := s.userID.Get()
		g.Go(func() error {
			if userErr = s.store.SetUser(ctx, s.id, userID); userErr != nil {
				userErr = fmt.Errorf("set session user: %w", userErr)
				return userErr
			}
			s.userID.Clear()
			return nil
		})
	}
	if s.revoked.Changed() {
		if !s.revoked.Get() {
			s.revoked.Clear()
		} else {
			g.Go(func() error {
				if revokeErr = s.store.Revoke(ctx, s.id); revokeErr != nil {
					revokeErr = fmt.Errorf("revoke session: %w", revokeErr)
					return revokeErr
				}
				s.revoked.Clear()
				return nil
			})
		}
	}
	_ = g.Wait()
	return errors.Join(valuesErr, userErr, revokeErr)
}

// Claims returns the token claims that reproduce a bootstrap session.
func (s *Session) Claims() map[string]any {
	claims := make(map[string]any, s.Len()+1)
	for k, v := range s.values.Get() {
		claims[k] = v.Any()
	}
	if s.kind == KindBootstrap {
		claims[ClaimType] = TypeBootstrap
	}
	return claims
}
