package payment

import (
	"regexp"
	"strings"

	appErrors "stakeoption/internal/errors"
)

var kenyanPhone = regexp.MustCompile(`^254[0-9]{9}$`)

// NormalizePhone turns 07xx, 01xx, 7xx, +2547xx and 2547xx forms into 2547xxxxxxxx.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, phone)
	cleaned = strings.TrimPrefix(cleaned, "+")
	switch {
	case strings.HasPrefix(cleaned, "0"):
		cleaned = "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "7"), strings.HasPrefix(cleaned, "1"):
		cleaned = "254" + cleaned
	}
	if !kenyanPhone.MatchString(cleaned) {
		return "", appErrors.ErrInvalidPhone
	}
	return cleaned, nil
}
