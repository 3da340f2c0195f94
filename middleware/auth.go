package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
)

// CronProtected guards the scheduler trigger endpoint with a shared
// secret carried in the Authorization header ("Bearer <secret>") or the
// X-Cron-Secret header.
func CronProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get("X-Cron-Secret")
		if provided == "" {
			auth := c.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
				provided = auth[len(prefix):]
			}
		}

		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or missing cron secret",
			})
		}
		return c.Next()
	}
}

// VerifyHMACSignature checks a hex-encoded HMAC-SHA256 signature over the
// raw request body. Length is compared first so length differences never
// leak through timing.
func VerifyHMACSignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if len(signature) != len(expected) {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(expected))
}
