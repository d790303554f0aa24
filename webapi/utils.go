package webapi

import (
	"errors"
	"strings"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/response"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// StatusFor maps a domain error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, domain.ErrNotRegistered),
		errors.Is(err, domain.ErrBalanceNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidHandle),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrInvalidAmount):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrHandleExists):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrStockLimit),
		errors.Is(err, domain.ErrInsufficient):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrLockFailed),
		errors.Is(err, domain.ErrMaintenanceMode):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respond writes the envelope for data or err.
func respond[T any](c *fiber.Ctx, status int, data T, err error, message string) error {
	if err != nil {
		return c.Status(StatusFor(err)).JSON(response.Fail[T](err))
	}
	return c.Status(status).JSON(response.OK(data, message))
}

// fail writes an envelope for a request that never reached a service.
func fail(c *fiber.Ctx, status int, code, message string) error {
	r := response.Fail[any](nil)
	r.Error = code
	r.Message = message
	return c.Status(status).JSON(r)
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// On failure the error response is already written and the returned pointer is nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, fail(c, fiber.StatusBadRequest, "InvalidRequest", "Invalid request body: "+err.Error())
	}
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		msg := err.Error()
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed "+fe.Tag())
			}
			msg = strings.Join(fields, "; ")
		}
		return nil, fail(c, fiber.StatusBadRequest, "ValidationFailed", msg)
	}
	return &input, nil
}
