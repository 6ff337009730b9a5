package api

import (
	"context"
	"errors"
	"time"

	"github.com/bilgisen/newsbot/internal/logger"
	"github.com/bilgisen/newsbot/internal/middleware"
	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/storage"
	"github.com/bilgisen/newsbot/internal/telegram"
	"github.com/gofiber/fiber/v2"
)

// PostQuerier is the read side of the post store.
type PostQuerier interface {
	Get(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, f storage.ListFilter) ([]models.Post, int64, error)
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
}

// UpdateRouter handles updates delivered by the Telegram webhook.
type UpdateRouter interface {
	Route(ctx context.Context, u telegram.Update)
}

type Handlers struct {
	posts   PostQuerier
	router  UpdateRouter
	ping    func(ctx context.Context) error
	started time.Time
}

// NewHandlers wires the HTTP handlers. router and ping may be nil.
func NewHandlers(posts PostQuerier, router UpdateRouter, ping func(ctx context.Context) error) *Handlers {
	return &Handlers{
		posts:   posts,
		router:  router,
		ping:    ping,
		started: time.Now(),
	}
}

// listQuery is the query string of GET /posts.
type listQuery struct {
	Status   string `query:"status" validate:"omitempty,oneof=pending published rejected"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// HealthCheck handles the /health endpoint
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	status, code := "ok", fiber.StatusOK
	if h.ping != nil {
		if err := h.ping(c.UserContext()); err != nil {
			logger.Get().Error().Err(err).Msg("Health check: database unreachable")
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// ListPosts handles GET /api/v1/posts
func (h *Handlers) ListPosts(c *fiber.Ctx) error {
	q, ok := c.Locals(middleware.QueryParamsKey).(*listQuery)
	if !ok {
		q = &listQuery{}
	}

	filter := storage.ListFilter{Status: models.Status(q.Status), Page: q.Page, PageSize: q.PageSize}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	posts, total, err := h.posts.List(c.UserContext(), filter)
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error listing posts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list posts",
		})
	}

	return c.JSON(fiber.Map{
		"page":      filter.Page,
		"page_size": filter.PageSize,
		"total":     total,
		"items":     posts,
	})
}

// GetPost handles GET /api/v1/posts/:id
func (h *Handlers) GetPost(c *fiber.Ctx) error {
	id := c.Params("id")

	post, err := h.posts.Get(c.UserContext(), id)
	if errors.Is(err, storage.ErrPostNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	}
	if err != nil {
		logger.Get().Error().Err(err).Str("id", id).Msg("Error getting post")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get post",
		})
	}

	return c.JSON(post)
}

// Stats handles GET /api/v1/posts/stats
func (h *Handlers) Stats(c *fiber.Ctx) error {
	counts, err := h.posts.CountByStatus(c.UserContext())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error counting posts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count posts",
		})
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return c.JSON(fiber.Map{
		"total":     total,
		"by_status": counts,
	})
}

// TelegramWebhook handles POST /telegram/webhook. Telegram only needs a 2xx;
// a malformed update is acknowledged so it is not redelivered.
func (h *Handlers) TelegramWebhook(c *fiber.Ctx) error {
	var u telegram.Update
	if err := c.BodyParser(&u); err != nil {
		logger.Get().Warn().Err(err).Msg("Malformed webhook update")
		return c.SendStatus(fiber.StatusOK)
	}

	if h.router != nil {
		h.router.Route(context.WithoutCancel(c.UserContext()), u)
	}
	return c.SendStatus(fiber.StatusOK)
}
