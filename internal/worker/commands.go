package worker

import "github.com/bilgisen/newsbot/internal/models"

// Kind names a command type in logs and metrics.
type Kind string

const (
	KindSavePost     Kind = "save_post"
	KindUpdateStatus Kind = "update_status"
	KindMarkSeen     Kind = "mark_seen"
)

// Command is one of SavePost, UpdateStatus or MarkSeen.
type Command interface {
	Kind() Kind
}

// SavePost stores a candidate that was just shown to the moderator.
type SavePost struct {
	ID        string
	Text      string
	Image     []byte
	Source    string
	URL       string
	ChatID    int64
	MessageID int64
}

func (SavePost) Kind() Kind { return KindSavePost }

// UpdateStatus records a moderator decision.
type UpdateStatus struct {
	ID     string
	Status models.Status
}

func (UpdateStatus) Kind() Kind { return KindUpdateStatus }

// MarkSeen adds a source url to the ledger.
type MarkSeen struct {
	URL string
}

func (MarkSeen) Kind() Kind { return KindMarkSeen }
