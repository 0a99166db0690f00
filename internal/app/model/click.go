package model

import "time"

// Click is a single recorded redirect of a link.
type Click struct {
	ID        string    `db:"id" gorm:"primaryKey;size:36" json:"id"`
	LinkID    string    `db:"link_id" gorm:"size:36;not null;index:idx_clicks_link_at,priority:1" json:"-"`
	At        time.Time `db:"at" gorm:"not null;index:idx_clicks_link_at,priority:2,sort:desc" json:"at"`
	IPHash    *string   `db:"ip_hash" gorm:"size:64" json:"-"`
	UserAgent *string   `db:"user_agent" gorm:"type:text" json:"ua,omitempty"`
	Referer   *string   `db:"referer" gorm:"size:500" json:"referer,omitempty"`
	Browser   string    `db:"browser" gorm:"size:50" json:"browser,omitempty"`
	OS        string    `db:"os" gorm:"size:50" json:"os,omitempty"`
	Device    string    `db:"device" gorm:"size:50" json:"device,omitempty"`
}

// ClickEvent is the message handed from the redirect path to click accounting.
type ClickEvent struct {
	ID        string    `json:"id"`
	LinkID    string    `json:"link_id"`
	Slug      string    `json:"slug"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-recorder"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
