package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/bilgisen/newsbot/internal/logger"
	"github.com/gofiber/fiber/v2"
)

// AuthConfig defines the config for the auth middleware
type AuthConfig struct {
	// Next skips the middleware when it returns true.
	Next func(c *fiber.Ctx) bool

	// Validator checks the presented key. Required.
	Validator func(key string) (bool, error)

	// ErrorHandler runs for a missing or invalid key.
	// Optional. Default: 401 Invalid or missing API Key
	ErrorHandler fiber.ErrorHandler

	// ContextKey is the Locals key the accepted key is stored under.
	// Optional. Default: "apiKey"
	ContextKey string

	// Header carries the key.
	// Optional. Default: "X-API-Key"
	Header string
}

// ConfigDefault is the default config
var ConfigDefault = AuthConfig{
	ErrorHandler: func(c *fiber.Ctx, err error) error {
		logger.Get().Warn().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Err(err).
			Msg("Authentication failed")

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or missing API Key",
		})
	},
	ContextKey: "apiKey",
	Header:     "X-API-Key",
}

// NewAuth creates a header key middleware.
func NewAuth(config ...AuthConfig) fiber.Handler {
	cfg := ConfigDefault

	if len(config) > 0 {
		cfg = config[0]

		if cfg.ErrorHandler == nil {
			cfg.ErrorHandler = ConfigDefault.ErrorHandler
		}
		if cfg.ContextKey == "" {
			cfg.ContextKey = ConfigDefault.ContextKey
		}
		if cfg.Header == "" {
			cfg.Header = ConfigDefault.Header
		}
	}
	if cfg.Validator == nil {
		panic("middleware: auth validator is required")
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		key := strings.TrimPrefix(c.Get(cfg.Header), "Bearer ")
		if key == "" {
			return cfg.ErrorHandler(c, errors.New("missing API key"))
		}

		valid, err := cfg.Validator(key)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}
		if !valid {
			return cfg.ErrorHandler(c, errors.New("invalid API key"))
		}

		c.Locals(cfg.ContextKey, key)
		return c.Next()
	}
}

// KeyValidator compares keys in constant time. An empty expected key rejects everything.
func KeyValidator(expected string) func(string) (bool, error) {
	return func(key string) (bool, error) {
		if expected == "" {
			return false, errors.New("no key configured")
		}
		return subtle.ConstantTimeCompare([]byte(key), []byte(expected)) == 1, nil
	}
}

// AdminOnly guards the admin API with the X-API-Key header.
func AdminOnly(adminKey string) fiber.Handler {
	return NewAuth(AuthConfig{
		Validator: KeyValidator(adminKey),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Get().Warn().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Err(err).
				Msg("Unauthorized admin access attempt")

			if c.Get("X-API-Key") == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "API key is required",
				})
			}
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin access required",
			})
		},
	})
}

// TelegramSecret checks the secret token Telegram attaches to webhook calls.
func TelegramSecret(secret string) fiber.Handler {
	return NewAuth(AuthConfig{
		Header:     "X-Telegram-Bot-Api-Secret-Token",
		ContextKey: "webhookSecret",
		Validator:  KeyValidator(secret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Get().Warn().Str("ip", c.IP()).Err(err).Msg("Rejected webhook call")
			return c.SendStatus(fiber.StatusUnauthorized)
		},
	})
}
