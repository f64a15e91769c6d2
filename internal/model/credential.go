package model

import "time"

// Credential is the single persisted token pair for the upstream session.
// There is at most one row; it lets a restarted agent resume its session
// without logging in again.
type Credential struct {
	ID           int    `gorm:"primaryKey"`
	AccessToken  string `gorm:"not null"`
	RefreshToken string `gorm:"not null"`
	UpdatedAt    time.Time
}
