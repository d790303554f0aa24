package webapi

import (
	"errors"
	"time"

	"github.com/amirasaad/storefront/pkg/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Protected requires a bearer token signed with the configured secret. The
// subject claim is the caller's platform user id.
func Protected(cfg *config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.Secret)},
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return fail(c, fiber.StatusBadRequest, "Unauthorized", "Missing or malformed JWT")
	}
	return fail(c, fiber.StatusUnauthorized, "Unauthorized", "Invalid or expired JWT")
}

// NewToken issues a token whose subject is platformUserID.
func NewToken(cfg *config.Jwt, platformUserID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   platformUserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

var errNoSubject = errors.New("token carries no subject")

// platformUserID returns the subject of the verified token.
func platformUserID(c *fiber.Ctx) (string, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return "", errNoSubject
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errNoSubject
	}
	return sub, nil
}

// caller resolves the platform user id or writes a 401.
func caller(c *fiber.Ctx) (string, bool, error) {
	pid, err := platformUserID(c)
	if err != nil {
		return "", false, fail(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
	}
	return pid, true, nil
}
