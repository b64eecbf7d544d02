package domain

import "time"

// Session is the persisted row behind a store-backed session. Values holds the
// JSON-encoded value map; the column is unbounded text.
type Session struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID    int64     `gorm:"index;not null;default:-1" json:"user_id"`
	Revoked   bool      `gorm:"index;not null;default:false" json:"revoked"`
	Values    string    `gorm:"column:data;type:text;not null;default:'{}'" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
