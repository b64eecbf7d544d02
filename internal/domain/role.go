package domain

// Role is one role string granted to one user.
type Role struct {
	ID     int64  `gorm:"primaryKey" json:"id"`
	Type   string `gorm:"size:32;not null;uniqueIndex:idx_roles_user_type" json:"type"`
	UserID int64  `gorm:"not null;index;uniqueIndex:idx_roles_user_type" json:"user_id"`
}
