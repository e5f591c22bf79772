package httpapi

import (
	"errors"

	"github.com/goliatone/go-checkout/core"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

type errorBody struct {
	Code     int            `json:"code"`
	TextCode string         `json:"text_code"`
	Message  string         `json:"message"`
	Fields   map[string]any `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// ErrorHandler renders any handler error in the checkout error envelope.
func ErrorHandler(logger core.Logger) fiber.ErrorHandler {
	observer := core.NewObserver("http", logger, nil)
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return writeError(c, fiberErr.Code, mapFiberError(fiberErr))
		}
		mapped := core.MapError(err)
		if mapped.Category == goerrors.CategoryInternal {
			observer.Error(c.UserContext(), "request failed", map[string]any{
				"method": c.Method(),
				"path":   c.Path(),
				"error":  err.Error(),
			})
		}
		return writeError(c, mapped.Code, mapped)
	}
}

func mapFiberError(err *fiber.Error) *goerrors.Error {
	category := goerrors.CategoryBadInput
	switch err.Code {
	case fiber.StatusNotFound:
		category = goerrors.CategoryNotFound
	case fiber.StatusUnauthorized:
		category = goerrors.CategoryAuth
	}
	if err.Code >= fiber.StatusInternalServerError {
		category = goerrors.CategoryInternal
	}
	mapped := core.MapError(goerrors.New(err.Message, category))
	mapped.Code = err.Code
	return mapped
}

func writeError(c *fiber.Ctx, status int, err *goerrors.Error) error {
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	body := errorBody{
		Code:     status,
		TextCode: err.TextCode,
		Message:  err.Message,
	}
	if fields := err.AllValidationErrors(); len(fields) > 0 {
		body.Fields = map[string]any{}
		for _, field := range fields {
			body.Fields[field.Field] = field.Message
		}
	}
	return c.Status(status).JSON(errorEnvelope{Error: body})
}
