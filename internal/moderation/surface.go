package moderation

import (
	"context"
	"errors"

	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/worker"
)

// ErrNotModified is returned by a Surface edit that would leave the message unchanged.
var ErrNotModified = errors.New("message is not modified")

// MessageRef locates a message shown to the moderator.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// Button is an action attached to a moderation message.
type Button struct {
	Text string
	Data string
}

// Surface is the moderator-facing chat.
type Surface interface {
	// SendText posts HTML text with buttons and without a link preview.
	SendText(ctx context.Context, text string, buttons []Button) (MessageRef, error)
	// SendPhoto posts an image with an HTML caption and buttons.
	SendPhoto(ctx context.Context, photo []byte, caption string, buttons []Button) (MessageRef, error)
	// EditText and EditCaption replace the content with plain text and drop the buttons.
	EditText(ctx context.Context, ref MessageRef, text string) error
	EditCaption(ctx context.Context, ref MessageRef, caption string) error
	RemoveButtons(ctx context.Context, ref MessageRef) error
	Answer(ctx context.Context, callbackID, text string, alert bool) error
}

// Broadcaster is the public channel.
type Broadcaster interface {
	PublishText(ctx context.Context, text string) error
	PublishPhoto(ctx context.Context, photo []byte, caption string) error
}

// Saver persists a submitted candidate.
type Saver interface {
	SavePost(ctx context.Context, cmd worker.SavePost) error
}

// StatusWriter records decisions.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id string, status models.Status) error
}

type PostReader interface {
	Get(ctx context.Context, id string) (*models.Post, error)
}

type BlobReader interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Controls returns the approve and reject buttons for a post.
func Controls(postID string) []Button {
	return []Button{
		{Text: "✅ Publish", Data: models.Decision{Action: models.ActionApprove, PostID: postID}.CallbackData()},
		{Text: "❌ Reject", Data: models.Decision{Action: models.ActionReject, PostID: postID}.CallbackData()},
	}
}
