package webapi

import (
	"github.com/amirasaad/storefront/pkg/app"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/gofiber/fiber/v2"
)

// HandleInput carries a GrowID.
type HandleInput struct {
	Handle string `json:"handle" validate:"required,min=3,max=64"`
}

// Me is the caller's identity and balance.
type Me struct {
	PlatformUserID string          `json:"platform_user_id"`
	Handle         string          `json:"handle"`
	Balance        balance.Balance `json:"balance"`
	Formatted      string          `json:"formatted"`
}

// UserRoutes registers the identity endpoints.
func UserRoutes(r fiber.Router, a *app.App) {
	r.Post("/users/register", Register(a))
	r.Put("/users/handle", UpdateHandle(a))
	r.Get("/users/me", GetMe(a))
}

// Register binds the caller to a GrowID.
func Register(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pid, ok, err := caller(c)
		if !ok {
			return err
		}
		input, err := BindAndValidate[HandleInput](c)
		if input == nil {
			return err
		}
		handle, err := a.UserService.Register(c.Context(), pid, input.Handle)
		return respond(c, fiber.StatusCreated, fiber.Map{"handle": handle}, err, "GrowID registered")
	}
}

// UpdateHandle moves the caller, balance and history included, to a new
// GrowID.
func UpdateHandle(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pid, ok, err := caller(c)
		if !ok {
			return err
		}
		input, err := BindAndValidate[HandleInput](c)
		if input == nil {
			return err
		}
		handle, err := a.UserService.UpdateHandle(c.Context(), pid, input.Handle)
		return respond(c, fiber.StatusOK, fiber.Map{"handle": handle}, err, "GrowID updated")
	}
}

// GetMe returns the caller's GrowID and balance.
func GetMe(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pid, ok, err := caller(c)
		if !ok {
			return err
		}
		handle, err := a.UserService.GetHandle(c.Context(), pid)
		if err != nil {
			return respond[*Me](c, 0, nil, err, "")
		}
		b, err := a.BalanceService.GetBalance(c.Context(), handle)
		return respond(c, fiber.StatusOK, &Me{
			PlatformUserID: pid,
			Handle:         handle,
			Balance:        b,
			Formatted:      b.Format(),
		}, err, "")
	}
}
