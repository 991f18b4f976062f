package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const deviceCookie = "device_id"

// clientOwner identifies who local state belongs to: the logged-in user's
// email when present, otherwise a device id cookie minted on first contact.
// This mirrors per-device browser storage for anonymous visitors.
func clientOwner(c *fiber.Ctx) string {
	if email, ok := c.Locals("email").(string); ok && email != "" {
		return email
	}
	if id := c.Cookies(deviceCookie); id != "" {
		return id
	}
	id := uuid.New().String()
	c.Cookie(&fiber.Cookie{
		Name:     deviceCookie,
		Value:    id,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return id
}

// bearerOf extracts the raw bearer token, if any.
func bearerOf(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}
