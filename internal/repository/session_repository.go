package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sandeepkv93/session-guard/internal/domain"
	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/session"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists sessions. Writes are last-write-wins; there is no
// version column.
type SessionRepository interface {
	session.Store
	Create(ctx context.Context, id, userID int64, values map[string]session.Value) (*domain.Session, error)
	Get(ctx context.Context, id int64) (*domain.Session, error)
	Delete(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64) ([]domain.Session, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, id, userID int64, values map[string]session.Value) (*domain.Session, error) {
	encoded, err := session.EncodeValues(values)
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return nil, err
	}
	row := &domain.Session{ID: id, UserID: userID, Values: encoded}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return row, nil
}

func (r *GormSessionRepository) Get(ctx context.Context, id int64) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "get", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", "get", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "get", "success")
	return &s, nil
}

func (r *GormSessionRepository) Update(ctx context.Context, id int64, values map[string]session.Value) error {
	encoded, err := session.EncodeValues(values)
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "update", "error")
		return err
	}
	return r.updateColumn(ctx, "update", id, "data", encoded)
}

func (r *GormSessionRepository) SetUser(ctx context.Context, id, userID int64) error {
	return r.updateColumn(ctx, "set_user", id, "user_id", userID)
}

func (r *GormSessionRepository) Revoke(ctx context.Context, id int64) error {
	return r.updateColumn(ctx, "revoke", id, "revoked", true)
}

func (r *GormSessionRepository) updateColumn(ctx context.Context, op string, id int64, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", op, "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", op, "not_found")
		return ErrSessionNotFound
	}
	observability.RecordRepositoryOperation(ctx, "session", op, "success")
	return nil
}

func (r *GormSessionRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&domain.Session{}, id)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "delete", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", "delete", "not_found")
		return ErrSessionNotFound
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete", "success")
	return nil
}

func (r *GormSessionRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_by_user", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list_by_user", "success")
	return sessions, nil
}
