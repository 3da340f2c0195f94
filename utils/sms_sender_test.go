package utils

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func twilioSign(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := url
	for _, k := range keys {
		payload += k + params[k]
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateTwilioSignature(t *testing.T) {
	authToken := "12345"
	url := "https://example.com/webhooks/twilio"
	params := map[string]string{
		"MessageSid": "SM123",
		"From":       "+15135550123",
		"Body":       "Hello",
	}

	signature := twilioSign(authToken, url, params)
	assert.True(t, ValidateTwilioSignature(authToken, url, params, signature))

	// Any tampering with token, url, params, or signature fails
	assert.False(t, ValidateTwilioSignature("wrong", url, params, signature))
	assert.False(t, ValidateTwilioSignature(authToken, url+"x", params, signature))

	tampered := map[string]string{}
	for k, v := range params {
		tampered[k] = v
	}
	tampered["Body"] = "Goodbye"
	assert.False(t, ValidateTwilioSignature(authToken, url, tampered, signature))

	assert.False(t, ValidateTwilioSignature(authToken, url, params, "not-a-signature"))
	assert.False(t, ValidateTwilioSignature(authToken, url, params, ""))
}
