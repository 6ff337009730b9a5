package models

import "time"

// Candidate is a feed item that survived deduplication and waits for enrichment.
// It is never persisted as such; it becomes a Post once sent to moderation.
type Candidate struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Enriched is the moderation-ready rendering of a Candidate.
type Enriched struct {
	// Text is Telegram HTML.
	Text string
	// Image is PNG bytes, nil for a text-only post.
	Image []byte
}
