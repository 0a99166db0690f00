package model

import "time"

// Link describes the core short-link entity stored in Postgres.
type Link struct {
	ID             string     `db:"id" gorm:"primaryKey;size:36"`
	Slug           string     `db:"slug" gorm:"uniqueIndex;size:64;not null"`
	Target         string     `db:"target" gorm:"type:text;not null"`
	PasswordDigest *string    `db:"password_digest" gorm:"size:100" json:"-"`
	IsActive       bool       `db:"is_active" gorm:"not null;default:true"`
	ExpiresAt      *time.Time `db:"expires_at" gorm:"index"`
	TotalClicks    int64      `db:"total_clicks" gorm:"not null;default:0"`
	CreatedAt      time.Time  `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `db:"updated_at" gorm:"autoUpdateTime"`
}

// LinkState is the validity state of a link, derived from its fields.
type LinkState int

const (
	StateActive LinkState = iota
	StatePasswordGated
	StateExpired
	StateInactive
)

func (s LinkState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePasswordGated:
		return "password_gated"
	case StateExpired:
		return "expired"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Expired reports whether the link has an expiry at or before now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// Gated reports whether a password digest is stored for the link.
func (l *Link) Gated() bool {
	return l.PasswordDigest != nil && *l.PasswordDigest != ""
}

// State derives the redirect state. Inactive wins over expiry so a deactivated
// link never reveals more than a missing one would.
func (l *Link) State(now time.Time) LinkState {
	switch {
	case !l.IsActive:
		return StateInactive
	case l.Expired(now):
		return StateExpired
	case l.Gated():
		return StatePasswordGated
	default:
		return StateActive
	}
}
