package webapi

import (
	"github.com/amirasaad/storefront/pkg/app"
	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/livestock"
	"github.com/amirasaad/storefront/pkg/lock"
	"github.com/gofiber/fiber/v2"
)

// StatusReport is the body of GET /api/health.
type StatusReport struct {
	Display  livestock.Health                               `json:"display"`
	Controls livestock.Health                               `json:"controls"`
	Clicks   map[livestock.ControlID]livestock.ControlStats `json:"clicks"`
	Locks    lock.Stats                                     `json:"locks"`
	Cache    cache.Stats                                    `json:"cache"`
}

// InteractionInput is a click forwarded by the chat adapter.
type InteractionInput struct {
	ID          string              `json:"id"`
	Control     livestock.ControlID `json:"control" validate:"required,oneof=register balance world buy history"`
	Handle      string              `json:"handle"`
	ProductCode string              `json:"product_code"`
	Quantity    *int                `json:"quantity" validate:"omitempty,min=0"`
}

// DonationInput is a message seen in the donation channel.
type DonationInput struct {
	Text string `json:"text" validate:"required"`
}

// DonationReply reports whether the message was a donation and what the
// bot answered.
type DonationReply struct {
	Reply   string `json:"reply"`
	Handled bool   `json:"handled"`
}

type messageLister interface {
	Messages(channelID string) []livestock.Message
}

// StatusRoutes registers the unauthenticated status endpoints.
func StatusRoutes(r fiber.Router, a *app.App) {
	r.Get("/health", Status(a))
	r.Get("/display", DisplayMessages(a))
}

// LivestockRoutes registers the endpoints fed by the chat adapter.
func LivestockRoutes(r fiber.Router, a *app.App) {
	r.Post("/interactions", Interact(a))
	r.Post("/donations", Donate(a))
}

// Status reports the health of the display, the controls, the lock
// registry and the cache. It answers 503 while either manager is unhealthy.
func Status(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report := StatusReport{
			Display:  a.Display.Health(),
			Controls: a.Controls.Health(),
			Clicks:   a.Controls.Report(),
			Locks:    a.Deps.Locks.Stats(),
		}
		stats, err := a.Deps.Cache.Stats(c.Context())
		if err != nil {
			a.Deps.Logger.Warn("cache stats failed", "error", err)
		}
		report.Cache = stats
		status := fiber.StatusOK
		if !report.Display.Healthy || !report.Controls.Healthy {
			status = fiber.StatusServiceUnavailable
		}
		return respond(c, status, report, nil, "")
	}
}

// DisplayMessages lists the messages of the stock channel when the surface
// keeps them locally.
func DisplayMessages(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lister, ok := a.Deps.Surface.(messageLister)
		if !ok {
			return fail(c, fiber.StatusNotImplemented, "NotSupported", "Surface does not expose its messages")
		}
		return respond(c, fiber.StatusOK, lister.Messages(a.Config.Store.ChannelID), nil, "")
	}
}

// Interact serves a control click on behalf of the caller. The reply
// envelope is returned as is, failures included, so the adapter can show
// its message.
func Interact(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pid, ok, err := caller(c)
		if !ok {
			return err
		}
		input, err := BindAndValidate[InteractionInput](c)
		if input == nil {
			return err
		}
		reply := a.Controls.HandleInteraction(c.Context(), livestock.Interaction{
			ID:          input.ID,
			UserID:      pid,
			Control:     input.Control,
			Handle:      input.Handle,
			ProductCode: input.ProductCode,
			Quantity:    input.Quantity,
		})
		return c.Status(fiber.StatusOK).JSON(reply)
	}
}

// Donate feeds a donation channel message to the ingestor.
func Donate(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[DonationInput](c)
		if input == nil {
			return err
		}
		reply, handled := a.Donations.Handle(c.Context(), input.Text)
		return respond(c, fiber.StatusOK, DonationReply{Reply: reply, Handled: handled}, nil, "")
	}
}
