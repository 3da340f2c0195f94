package utils

import (
	"fmt"
	"strings"
)

// NormalizePhone converts a phone number to E.164 form (+1XXXXXXXXXX for
// US numbers). Returns "" if the number cannot be normalized.
func NormalizePhone(phone string) string {
	if phone == "" {
		return ""
	}

	digits := stripNonDigits(phone)

	switch {
	case len(digits) == 10:
		// US number without country code: 5135551234
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		// US number with country code: 15135551234
		return "+" + digits
	case len(digits) >= 10 && len(digits) <= 15:
		// International number - assume it's valid
		return "+" + digits
	}

	return ""
}

// FormatPhone renders a number for display as (XXX) XXX-XXXX
func FormatPhone(phone string) string {
	if phone == "" {
		return ""
	}

	digits := stripNonDigits(phone)

	if len(digits) == 10 {
		return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:])
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return fmt.Sprintf("(%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
	}

	// Return as-is for international numbers
	return phone
}

// IsValidPhone reports whether the number can be normalized to E.164
func IsValidPhone(phone string) bool {
	return NormalizePhone(phone) != ""
}

// PhonesMatch compares two numbers for equality after normalizing both
func PhonesMatch(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
