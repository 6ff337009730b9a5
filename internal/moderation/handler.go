package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/bilgisen/newsbot/internal/metrics"
	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/storage"
	"github.com/rs/zerolog"
)

// Event is a button press on a moderation message.
type Event struct {
	CallbackID string
	Data       string
	ChatID     int64
	MessageID  int64
	// HasPhoto is set when the moderation message is a photo with a caption.
	HasPhoto bool
	// Body is the plain text or caption currently shown.
	Body string
}

func (e Event) ref() MessageRef {
	return MessageRef{ChatID: e.ChatID, MessageID: e.MessageID}
}

// Handler applies moderator decisions.
type Handler struct {
	posts     PostReader
	status    StatusWriter
	blobs     BlobReader
	surface   Surface
	broadcast Broadcaster
	log       zerolog.Logger
}

func NewHandler(posts PostReader, status StatusWriter, blobs BlobReader, surface Surface, broadcast Broadcaster, log zerolog.Logger) *Handler {
	return &Handler{
		posts:     posts,
		status:    status,
		blobs:     blobs,
		surface:   surface,
		broadcast: broadcast,
		log:       log,
	}
}

// Handle never fails: every outcome is logged and reported back to the
// moderator through the callback answer.
func (h *Handler) Handle(ctx context.Context, ev Event) {
	log := h.log.With().Str("callback_id", ev.CallbackID).Str("data", ev.Data).Logger()

	d, err := models.ParseDecision(ev.Data)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring callback")
		metrics.Decisions.WithLabelValues("unknown", "invalid").Inc()
		h.answer(ctx, log, ev, "Invalid action", true)
		return
	}

	log = log.With().Str("post_id", d.PostID).Str("action", string(d.Action)).Logger()
	result, reply, alert := h.apply(ctx, log, ev, d)
	metrics.Decisions.WithLabelValues(string(d.Action), result).Inc()
	h.answer(ctx, log, ev, reply, alert)
}

func (h *Handler) apply(ctx context.Context, log zerolog.Logger, ev Event, d models.Decision) (result, reply string, alert bool) {
	post, err := h.posts.Get(ctx, d.PostID)
	switch {
	case errors.Is(err, storage.ErrPostNotFound):
		log.Warn().Msg("decision for unknown post")
		return "not_found", "Post not found", true
	case err != nil:
		log.Error().Err(err).Msg("failed to load post")
		return "error", "Storage error, try again", true
	}

	if post.Status.IsTerminal() {
		// The text stays as is: a failed publish left it unmarked.
		h.dropControls(ctx, log, ev)
		return "duplicate", fmt.Sprintf("Already %s", post.Status), false
	}

	target := d.TargetStatus()
	if err := h.status.UpdateStatus(ctx, post.ID, target); err != nil {
		switch {
		case errors.Is(err, storage.ErrStatusFinal):
			// another press won the race
			log.Info().Msg("post decided concurrently")
			if latest, gerr := h.posts.Get(ctx, post.ID); gerr == nil {
				return "duplicate", fmt.Sprintf("Already %s", latest.Status), false
			}
			return "duplicate", "Already decided", false
		case errors.Is(err, storage.ErrPostNotFound):
			return "not_found", "Post not found", true
		default:
			log.Error().Err(err).Msg("failed to record decision")
			return "error", "Failed to save decision", true
		}
	}
	post.Status = target

	if d.Action == models.ActionApprove {
		if err := h.publish(ctx, log, post); err != nil {
			log.Error().Err(err).Msg("failed to publish post")
			return "publish_failed", "Publish failed", true
		}
		h.settle(ctx, log, ev, post)
		log.Info().Msg("post published")
		return "ok", "Published", false
	}

	h.settle(ctx, log, ev, post)
	log.Info().Msg("post rejected")
	return "ok", "Rejected", false
}

// publish sends the post to the channel, as a photo when its image is readable.
func (h *Handler) publish(ctx context.Context, log zerolog.Logger, post *models.Post) error {
	if post.ImageRef != nil {
		image, err := h.blobs.Get(ctx, *post.ImageRef)
		switch {
		case errors.Is(err, storage.ErrBlobNotFound):
			log.Warn().Str("ref", *post.ImageRef).Msg("image missing, publishing text only")
		case err != nil:
			log.Warn().Err(err).Str("ref", *post.ImageRef).Msg("failed to read image, publishing text only")
		default:
			return h.broadcast.PublishPhoto(ctx, image, ChannelPost(post, MaxChannelCaption))
		}
	}
	return h.broadcast.PublishText(ctx, ChannelPost(post, MaxMessageText))
}

// settle marks the moderation message with the final status and drops its buttons.
// Edit failures are logged only.
func (h *Handler) settle(ctx context.Context, log zerolog.Logger, ev Event, post *models.Post) {
	body := ev.Body
	if body == "" {
		body = PlainText(post.Text)
	}

	var err error
	if ev.HasPhoto {
		err = h.surface.EditCaption(ctx, ev.ref(), decidedText(post.Status, body, MaxPhotoCaption))
	} else {
		err = h.surface.EditText(ctx, ev.ref(), decidedText(post.Status, body, MaxMessageText))
	}

	switch {
	case err == nil:
		return
	case errors.Is(err, ErrNotModified):
		log.Debug().Msg("moderation message already marked")
	default:
		log.Warn().Err(err).Msg("failed to edit moderation message")
	}

	h.dropControls(ctx, log, ev)
}

func (h *Handler) dropControls(ctx context.Context, log zerolog.Logger, ev Event) {
	if err := h.surface.RemoveButtons(ctx, ev.ref()); err != nil && !errors.Is(err, ErrNotModified) {
		log.Warn().Err(err).Msg("failed to remove moderation buttons")
	}
}

func (h *Handler) answer(ctx context.Context, log zerolog.Logger, ev Event, text string, alert bool) {
	if ev.CallbackID == "" {
		return
	}
	if err := h.surface.Answer(ctx, ev.CallbackID, text, alert); err != nil {
		log.Warn().Err(err).Msg("failed to answer callback")
	}
}
