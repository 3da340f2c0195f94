package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCronApp(secret string) *fiber.App {
	app := fiber.New()
	app.Post("/cron/run", CronProtected(secret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})
	return app
}

func TestCronProtected(t *testing.T) {
	app := newCronApp("s3cret")

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"cron header", "X-Cron-Secret", "s3cret", fiber.StatusOK},
		{"bearer token", "Authorization", "Bearer s3cret", fiber.StatusOK},
		{"wrong secret", "X-Cron-Secret", "nope", fiber.StatusUnauthorized},
		{"wrong bearer", "Authorization", "Bearer nope", fiber.StatusUnauthorized},
		{"missing", "", "", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/cron/run", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCronProtectedEmptySecretRejectsAll(t *testing.T) {
	// A blank configured secret must fail closed, not open
	app := newCronApp("")
	req := httptest.NewRequest("POST", "/cron/run", nil)
	req.Header.Set("X-Cron-Secret", "")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyHMACSignature(t *testing.T) {
	payload := []byte(`{"first_name":"Jordan"}`)
	secret := "webhook-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifyHMACSignature(payload, valid, secret))
	assert.False(t, VerifyHMACSignature(payload, valid, "other-secret"))
	assert.False(t, VerifyHMACSignature([]byte("tampered"), valid, secret))
	assert.False(t, VerifyHMACSignature(payload, "", secret))
	assert.False(t, VerifyHMACSignature(payload, valid, ""))
	assert.False(t, VerifyHMACSignature(payload, "short", secret))
}
