package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bilgisen/newsbot/internal/metrics"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	ParseModeHTML = "HTML"

	maxRetryAfter = 30 * time.Second
)

// Options configures a Bot API client.
type Options struct {
	Token      string
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
}

// Client is a minimal Bot API client.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.telegram.org"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 20
	}

	burst := int(opts.RatePerSec)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(opts.BaseURL, "/") + "/bot" + opts.Token).
			SetTimeout(opts.Timeout),
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), burst),
	}
}

// ChatID renders a numeric chat id the way the API accepts it.
func ChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (c *Client) call(ctx context.Context, method string, limited bool, build func(*resty.Request), out any) error {
	for attempt := 0; ; attempt++ {
		if limited {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req := c.http.R().SetContext(ctx)
		build(req)

		resp, err := req.Post("/" + method)
		if err != nil {
			metrics.TelegramRequests.WithLabelValues(method, "error").Inc()
			return fmt.Errorf("telegram %s: %w", method, err)
		}

		var env envelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			metrics.TelegramRequests.WithLabelValues(method, "error").Inc()
			return fmt.Errorf("telegram %s: status %d: decode response: %w", method, resp.StatusCode(), err)
		}

		if !env.OK {
			apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
			if env.Parameters != nil {
				apiErr.RetryAfter = env.Parameters.RetryAfter
			}

			wait := time.Duration(apiErr.RetryAfter) * time.Second
			if apiErr.Code == http.StatusTooManyRequests && attempt == 0 && wait > 0 && wait <= maxRetryAfter {
				metrics.TelegramRequests.WithLabelValues(method, "throttled").Inc()
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			metrics.TelegramRequests.WithLabelValues(method, "error").Inc()
			return apiErr
		}

		metrics.TelegramRequests.WithLabelValues(method, "ok").Inc()
		if out == nil || len(env.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) callJSON(ctx context.Context, method string, body, out any) error {
	return c.call(ctx, method, true, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}, out)
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.callJSON(ctx, "getMe", struct{}{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (*Message, error) {
	var m Message
	if err := c.callJSON(ctx, "sendMessage", p, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SendPhoto uploads the photo bytes as multipart form data.
func (c *Client) SendPhoto(ctx context.Context, p SendPhotoParams) (*Message, error) {
	fields := map[string]string{"chat_id": p.ChatID}
	if p.Caption != "" {
		fields["caption"] = p.Caption
	}
	if p.ParseMode != "" {
		fields["parse_mode"] = p.ParseMode
	}
	if p.ReplyMarkup != nil {
		markup, err := json.Marshal(p.ReplyMarkup)
		if err != nil {
			return nil, fmt.Errorf("encode reply markup: %w", err)
		}
		fields["reply_markup"] = string(markup)
	}

	var m Message
	err := c.call(ctx, "sendPhoto", true, func(r *resty.Request) {
		r.SetMultipartFormData(fields).
			SetFileReader("photo", "image.png", bytes.NewReader(p.Photo))
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) EditMessageText(ctx context.Context, p EditMessageTextParams) error {
	return c.callJSON(ctx, "editMessageText", p, nil)
}

func (c *Client) EditMessageCaption(ctx context.Context, p EditMessageCaptionParams) error {
	return c.callJSON(ctx, "editMessageCaption", p, nil)
}

func (c *Client) EditMessageReplyMarkup(ctx context.Context, p EditMessageReplyMarkupParams) error {
	return c.callJSON(ctx, "editMessageReplyMarkup", p, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, p AnswerCallbackQueryParams) error {
	return c.callJSON(ctx, "answerCallbackQuery", p, nil)
}

// GetUpdates long-polls for updates. It bypasses the rate limiter.
func (c *Client) GetUpdates(ctx context.Context, p GetUpdatesParams) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", false, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(p)
	}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) SetWebhook(ctx context.Context, p SetWebhookParams) error {
	return c.callJSON(ctx, "setWebhook", p, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.callJSON(ctx, "deleteWebhook", map[string]bool{"drop_pending_updates": false}, nil)
}
