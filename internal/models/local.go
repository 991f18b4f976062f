package models

import "time"

// The types below back the local persistence adapter: the gateway's durable
// per-client state that survives a restart without a new backend call.

// Session is a logged-in client session. TokenHash is a bcrypt hash of the
// issued token digest, so a leaked store does not leak live tokens. Deleting
// the row revokes the session.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"index;type:varchar(255)"`
	Name      string    `json:"name" gorm:"type:varchar(100)"`
	TokenHash string    `gorm:"type:varchar(255)"` // No json tag for security
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileRecord is the locally persisted copy of a user's health profile,
// keyed by email so a reload restores it without hitting the backend.
type ProfileRecord struct {
	Email          string    `json:"email" gorm:"primaryKey;type:varchar(255)"`
	Age            int       `json:"age"`
	Weight         float64   `json:"weight"`
	HealthConcerns string    `json:"health_concerns"`
	Diseases       string    `json:"diseases"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RecentView is one entry of the client-side "recently viewed" cache. Owner
// is the user's email, or the anonymous device id for logged-out clients.
type RecentView struct {
	ID        uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Owner     string    `json:"-" gorm:"index;type:varchar(255)"`
	ProductID int       `json:"product_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	ViewedAt  time.Time `json:"viewed_at"`
}

// SearchEntry is one remembered search query per owner.
type SearchEntry struct {
	ID         uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Owner      string    `json:"-" gorm:"index;type:varchar(255)"`
	Query      string    `json:"query" gorm:"type:varchar(255)"`
	SearchedAt time.Time `json:"searched_at"`
}

// Favorite marks a product as favorited by an owner.
type Favorite struct {
	ID        uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	Owner     string `json:"-" gorm:"index;type:varchar(255)"`
	ProductID int    `json:"product_id"`
}
