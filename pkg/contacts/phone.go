package contacts

import "strings"

// NormalizePhone cleans a raw phone number into the stable key form:
// digits and an optional leading '+', with leading zeros stripped from
// the subscriber part after the country code.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for i, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		} else if c == '+' && i == 0 {
			b.WriteRune(c)
		}
	}
	cleaned := b.String()

	if strings.HasPrefix(cleaned, "+") {
		// Keep everything up to the first zero as the country code,
		// then trim leading zeros from the remainder.
		rest := cleaned[1:]
		zero := strings.IndexByte(rest, '0')
		if zero == -1 {
			return cleaned
		}
		return "+" + rest[:zero] + strings.TrimLeft(rest[zero:], "0")
	}

	return strings.TrimLeft(cleaned, "0")
}
