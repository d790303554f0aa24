// Package webapi exposes the storefront over HTTP. Every reply uses the
// response envelope; the chat platform adapter posts interactions and
// donation messages here.
package webapi

import (
	"strings"

	"github.com/amirasaad/storefront/pkg/app"
	"github.com/amirasaad/storefront/pkg/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
			return fail(c, status, "InternalError", err.Error())
		},
	})

	fiberApp.Use(limiter.New(limiter.Config{
		Max:        a.Config.RateLimit.MaxRequests,
		Expiration: a.Config.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				if i := strings.Index(forwardedFor, ","); i != -1 {
					return strings.TrimSpace(forwardedFor[:i])
				}
				return strings.TrimSpace(forwardedFor)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fail(c, fiber.StatusTooManyRequests, "RateLimited", "Rate limit exceeded")
		},
	}))
	fiberApp.Use(recover.New())
	if a.Config.Env != "test" {
		fiberApp.Use(logger.New())
	}

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Storefront is running! 🏪")
	})
	fiberApp.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := fiberApp.Group("/api")
	StatusRoutes(api, a)

	protected := api.Group("", Protected(a.Config.Jwt))
	UserRoutes(protected, a)
	StoreRoutes(protected, a)
	AdminRoutes(protected.Group("/admin"), a)
	LivestockRoutes(protected, a)
	return fiberApp
}
