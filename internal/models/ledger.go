package models

import "time"

// LedgerEntry marks a source url as already ingested. Entries are never removed.
type LedgerEntry struct {
	URL         string    `gorm:"primaryKey;type:TEXT"`
	ProcessedAt time.Time `gorm:"type:DATETIME NOT NULL"`
}

// TableName implements the GORM tabler interface.
func (LedgerEntry) TableName() string { return "processed_urls" }
