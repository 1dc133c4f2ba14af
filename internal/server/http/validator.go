package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"webchess/internal/server/core"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New()

// validationMiddleware parses and validates request bodies, storing the
// result in locals for the route handler
func validationMiddleware(c *fiber.Ctx) error {
	method := c.Method()
	if method == fiber.MethodGet || method == fiber.MethodDelete || method == fiber.MethodOptions {
		return c.Next()
	}

	path := c.Path()
	var requestType any
	optionalBody := false

	switch {
	case strings.HasSuffix(path, "/games") && method == fiber.MethodPost:
		requestType = &core.CreateGameRequest{}
	case strings.HasSuffix(path, "/players") && method == fiber.MethodPut:
		requestType = &core.ConfigurePlayersRequest{}
	case strings.HasSuffix(path, "/moves") && method == fiber.MethodPost:
		requestType = &core.MoveRequest{}
	case strings.HasSuffix(path, "/undo") && method == fiber.MethodPost:
		requestType = &core.UndoRequest{}
		optionalBody = true
	default:
		return c.Next()
	}

	if !(optionalBody && len(c.Body()) == 0) {
		if err := c.BodyParser(requestType); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
				Error:   "invalid request body",
				Code:    core.ErrInvalidRequest,
				Details: err.Error(),
			})
		}
	}

	if err := validate.Struct(requestType); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "validation failed",
			Code:    core.ErrInvalidRequest,
			Details: describeValidation(err),
		})
	}

	c.Locals("validatedBody", requestType)
	c.Locals("validated", true)

	return c.Next()
}

// describeValidation turns validator errors into one readable line
func describeValidation(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}

	var details strings.Builder
	for _, e := range errs {
		if details.Len() > 0 {
			details.WriteString("; ")
		}
		unit := ""
		if e.Kind() == reflect.String {
			unit = " characters"
		}
		switch e.Tag() {
		case "required":
			fmt.Fprintf(&details, "%s is required", e.Field())
		case "oneof":
			fmt.Fprintf(&details, "%s must be one of [%s]", e.Field(), e.Param())
		case "min":
			fmt.Fprintf(&details, "%s must be at least %s%s", e.Field(), e.Param(), unit)
		case "max":
			fmt.Fprintf(&details, "%s must be at most %s%s", e.Field(), e.Param(), unit)
		default:
			fmt.Fprintf(&details, "%s failed %s validation", e.Field(), e.Tag())
		}
	}
	return details.String()
}

// validatedBody returns the body parsed by validationMiddleware. A missing
// body means the route skipped validation, which is a server bug.
func validatedBody[T any](c *fiber.Ctx) (T, bool) {
	var zero T

	if validated, ok := c.Locals("validated").(bool); !ok || !validated {
		_ = c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation bypass detected",
			Code:  core.ErrInternalError,
		})
		return zero, false
	}

	body, ok := c.Locals("validatedBody").(*T)
	if !ok || body == nil {
		_ = c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "validation data missing",
			Code:  core.ErrInternalError,
		})
		return zero, false
	}
	return *body, true
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
