package voice

import "strings"

// NormalizePhone converts a user-entered number into +<digits> form, assuming
// country code 1 when none is given. Returns "" when there are no digits.
func NormalizePhone(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(value, "+"):
		return "+" + digits
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	default:
		return "+1" + digits
	}
}
