package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(t *testing.T, app *fiber.App, target string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestNewAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/", NewAuth(AuthConfig{Validator: KeyValidator("k1")}), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("apiKey").(string))
	})

	assert.Equal(t, http.StatusUnauthorized, status(t, app, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, status(t, app, "/", map[string]string{"X-API-Key": "k2"}))
	assert.Equal(t, http.StatusOK, status(t, app, "/", map[string]string{"X-API-Key": "Bearer k1"}))
}

func TestKeyValidatorWithoutKeyRejects(t *testing.T) {
	ok, err := KeyValidator("")("anything")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestTelegramSecret(t *testing.T) {
	app := fiber.New()
	app.Get("/hook", TelegramSecret("s3cret"), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, status(t, app, "/hook", map[string]string{"X-API-Key": "s3cret"}))
	assert.Equal(t, http.StatusOK, status(t, app, "/hook", map[string]string{"X-Telegram-Bot-Api-Secret-Token": "s3cret"}))
}

type pageQuery struct {
	Page int    `query:"page" validate:"omitempty,gte=1"`
	Tag  string `query:"tag"`
}

func TestValidateQueryParamsUsesFreshValue(t *testing.T) {
	app := fiber.New()
	app.Get("/", ValidateQueryParams(func() any { return &pageQuery{} }), func(c *fiber.Ctx) error {
		q := c.Locals(QueryParamsKey).(*pageQuery)
		return c.JSON(q)
	})

	req := httptest.NewRequest(http.MethodGet, "/?page=2&tag=ai", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.JSONEq(t, `{"Page":0,"Tag":""}`, buf.String(), "values from an earlier request must not leak")

	assert.Equal(t, http.StatusUnprocessableEntity, status(t, app, "/?page=0", nil))
	assert.Equal(t, http.StatusBadRequest, status(t, app, "/?page=abc", nil))
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(NewLogger(LoggerConfig{Logger: &log}))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(http.StatusBadGateway, "upstream") })

	assert.Equal(t, http.StatusOK, status(t, app, "/ok", nil))
	assert.Contains(t, buf.String(), `"level":"debug"`)

	buf.Reset()
	assert.Equal(t, http.StatusBadGateway, status(t, app, "/boom", nil))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"status":502`)
}
