package middleware

import (
	"errors"
	"net/http"

	"github.com/bilgisen/newsbot/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// QueryParamsKey is the Locals key holding validated query parameters.
const QueryParamsKey = "queryParams"

// Validator wraps a shared validator instance.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(s any) error {
	return v.validate.Struct(s)
}

// fieldErrors maps each failing field to the rule it broke.
func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}

// ValidateQueryParams parses the query string into a fresh value from newParams
// and validates it. Handlers read the result with c.Locals(QueryParamsKey).
func ValidateQueryParams(newParams func() any) fiber.Handler {
	v := NewValidator()

	return func(c *fiber.Ctx) error {
		params := newParams()

		if err := c.QueryParser(params); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid query parameters",
				"msg":   err.Error(),
			})
		}

		if err := v.Validate(params); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "Invalid query parameters",
				"fields": fieldErrors(err),
			})
		}

		c.Locals(QueryParamsKey, params)
		return c.Next()
	}
}

// ErrorHandler is the fiber error handler: it logs and answers with JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code >= fiber.StatusInternalServerError {
		logger.Get().Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", code).
			Msg("HTTP error")
	}

	return c.Status(code).JSON(fiber.Map{
		"error": http.StatusText(code),
	})
}
