package model

import (
	"time"
)

// AnonymousOwner is the owner id recorded when no identity could be resolved.
const AnonymousOwner = "anonymous"

// Link represents a short code mapped to an original URL. The same record is
// serialized as JSON into the link store and mirrored as a row in the catalog.
type Link struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ShortCode   string     `gorm:"uniqueIndex;type:varchar(20);not null" json:"short_code"`
	OriginalURL string     `gorm:"type:varchar(2048);not null" json:"original_url"`
	UserID      string     `gorm:"index;type:varchar(64);not null" json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at,omitempty"`
	Clicks      uint64     `gorm:"default:0" json:"clicks"`
}

// TableName specifies the catalog table name for Link
func (Link) TableName() string {
	return "urls"
}

// IsExpired reports whether the link is past its expiry time
func (l *Link) IsExpired() bool {
	if l.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*l.ExpiresAt)
}

// Click is one redirect event, append-only. The raw client IP is never
// stored; only its salted hash.
type Click struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ShortCode  string    `gorm:"index;type:varchar(20);not null" json:"short_code"`
	ClickedAt  time.Time `gorm:"index" json:"clicked_at"`
	Country    string    `gorm:"type:varchar(64)" json:"country"`
	City       string    `gorm:"type:varchar(64)" json:"city"`
	DeviceType string    `gorm:"type:varchar(16)" json:"device_type"`
	Browser    string    `gorm:"type:varchar(32)" json:"browser"`
	OS         string    `gorm:"type:varchar(32)" json:"os"`
	Referrer   string    `gorm:"type:varchar(512)" json:"referrer"`
	IPHash     string    `gorm:"type:varchar(64)" json:"ip_hash"`
}

// TableName specifies the catalog table name for Click
func (Click) TableName() string {
	return "clicks"
}
