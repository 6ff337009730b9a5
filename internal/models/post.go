package models

import (
	"fmt"
	"time"
)

// Status is the moderation state of a Post.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPublished, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// CanTransitionTo allows only pending -> published and pending -> rejected.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

// ParseStatus converts a query/config value into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown post status %q", v)
	}
	return s, nil
}

// Post is the archival record of a candidate sent to moderation.
type Post struct {
	ID                  string     `gorm:"primaryKey;type:TEXT" json:"id"`
	Text                string     `gorm:"type:TEXT NOT NULL" json:"text"`
	ImageRef            *string    `gorm:"type:TEXT" json:"image_ref,omitempty"`
	Status              Status     `gorm:"type:TEXT NOT NULL;index" json:"status"`
	Source              string     `gorm:"type:TEXT" json:"source"`
	URL                 string     `gorm:"type:TEXT NOT NULL;uniqueIndex" json:"url"`
	ModerationChatID    int64      `json:"moderation_chat_id,omitempty"`
	ModerationMessageID int64      `json:"moderation_message_id,omitempty"`
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`
	DecidedAt           *time.Time `json:"decided_at,omitempty"`
}

// TableName implements the GORM tabler interface.
func (Post) TableName() string { return "posts" }

// HasImage reports whether an image blob was stored for the post.
func (p *Post) HasImage() bool {
	return p.ImageRef != nil && *p.ImageRef != ""
}
