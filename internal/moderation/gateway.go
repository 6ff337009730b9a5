package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsbot/internal/metrics"
	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/utils"
	"github.com/bilgisen/newsbot/internal/worker"
	"github.com/rs/zerolog"
)

// Gateway shows enriched candidates to the moderator and records them as pending posts.
type Gateway struct {
	surface Surface
	store   Saver
	log     zerolog.Logger
	now     func() time.Time
}

func NewGateway(surface Surface, store Saver, log zerolog.Logger) *Gateway {
	return &Gateway{
		surface: surface,
		store:   store,
		log:     log,
		now:     time.Now,
	}
}

// Submit sends the candidate for moderation and returns the new post id.
// A failed send is not retried and nothing is persisted.
func (g *Gateway) Submit(ctx context.Context, c models.Candidate, e models.Enriched) (string, error) {
	id := utils.NewPostID(g.now(), e.Text, c.URL)
	log := g.log.With().Str("post_id", id).Str("url", c.URL).Logger()

	var (
		ref MessageRef
		err error
	)
	if len(e.Image) > 0 {
		ref, err = g.surface.SendPhoto(ctx, e.Image, TruncateHTML(e.Text, MaxPhotoCaption), Controls(id))
	} else {
		ref, err = g.surface.SendText(ctx, TruncateHTML(e.Text, MaxMessageText), Controls(id))
	}
	if err != nil {
		metrics.ModerationSubmissions.WithLabelValues("send_failed").Inc()
		log.Error().Err(err).Msg("failed to send candidate for moderation")
		return "", fmt.Errorf("send for moderation: %w", err)
	}

	err = g.store.SavePost(ctx, worker.SavePost{
		ID:        id,
		Text:      e.Text,
		Image:     e.Image,
		Source:    c.Source,
		URL:       c.URL,
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
	})
	if err != nil {
		metrics.ModerationSubmissions.WithLabelValues("save_failed").Inc()
		log.Error().Err(err).Msg("failed to save post")
		// buttons on an unsaved post could only ever answer "not found"
		if rerr := g.surface.RemoveButtons(ctx, ref); rerr != nil {
			log.Warn().Err(rerr).Msg("failed to remove moderation buttons")
		}
		return id, fmt.Errorf("save post: %w", err)
	}

	metrics.ModerationSubmissions.WithLabelValues("ok").Inc()
	log.Info().Int64("message_id", ref.MessageID).Msg("candidate sent for moderation")
	return id, nil
}
