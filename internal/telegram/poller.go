package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsbot/internal/moderation"
	"github.com/rs/zerolog"
)

// EventHandler consumes moderator button presses.
type EventHandler interface {
	Handle(ctx context.Context, ev moderation.Event)
}

// Router forwards callback queries from the admin chat to the handler.
// It is shared by the long poller and the webhook endpoint.
type Router struct {
	handler     EventHandler
	client      *Client
	adminChatID int64
	log         zerolog.Logger
}

func NewRouter(handler EventHandler, client *Client, adminChatID int64, log zerolog.Logger) *Router {
	return &Router{handler: handler, client: client, adminChatID: adminChatID, log: log}
}

// CallbackEvent converts a callback query into a moderation event.
func CallbackEvent(q *CallbackQuery) moderation.Event {
	ev := moderation.Event{CallbackID: q.ID, Data: q.Data}
	if m := q.Message; m != nil {
		ev.ChatID = m.Chat.ID
		ev.MessageID = m.MessageID
		ev.HasPhoto = len(m.Photo) > 0
		ev.Body = m.Text
		if ev.HasPhoto {
			ev.Body = m.Caption
		}
	}
	return ev
}

// Route handles one update. Panics in the handler are recovered and logged.
func (r *Router) Route(ctx context.Context, u Update) {
	q := u.CallbackQuery
	if q == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Int64("update_id", u.UpdateID).Msg("callback handler panicked")
		}
	}()

	if q.Message == nil || q.Message.Chat.ID != r.adminChatID {
		r.log.Warn().Int64("user_id", q.From.ID).Msg("callback from outside the moderator chat")
		if err := r.client.AnswerCallbackQuery(ctx, AnswerCallbackQueryParams{CallbackQueryID: q.ID, Text: "Not allowed", ShowAlert: true}); err != nil {
			r.log.Warn().Err(err).Msg("failed to answer callback")
		}
		return
	}

	r.log.Debug().Int64("user_id", q.From.ID).Str("data", q.Data).Msg("callback received")
	r.handler.Handle(ctx, CallbackEvent(q))
}

// Poller receives updates through getUpdates long polling.
type Poller struct {
	client  *Client
	router  *Router
	log     zerolog.Logger
	timeout int
	backoff time.Duration
}

func NewPoller(client *Client, router *Router, log zerolog.Logger) *Poller {
	return &Poller{
		client:  client,
		router:  router,
		log:     log,
		timeout: 25,
		backoff: 3 * time.Second,
	}
}

// Run polls until ctx is cancelled. A decision already being handled when
// ctx ends is allowed to finish.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.client.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	p.log.Info().Msg("polling for moderator decisions")

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := p.client.GetUpdates(ctx, GetUpdatesParams{
			Offset:         offset,
			Timeout:        p.timeout,
			AllowedUpdates: []string{"callback_query"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warn().Err(err).Dur("backoff", p.backoff).Msg("getUpdates failed")
			select {
			case <-time.After(p.backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.router.Route(context.WithoutCancel(ctx), u)
		}
	}
}
