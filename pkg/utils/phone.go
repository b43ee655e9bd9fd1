package utils

import (
	"fmt"
	"strings"
)

// NormalizePhone canonicalizes a phone number to E.164-ish form so the same
// customer always resolves to the same contact row. Handles the common
// Nigerian formats: "0803...", "234803...", "+234 803 ...".
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	num := digits.String()
	switch {
	case num == "":
		return "", fmt.Errorf("phone number %q contains no digits", raw)
	case strings.HasPrefix(num, "0") && len(num) == 11:
		// Local format: 0803... -> +234803...
		return "+234" + num[1:], nil
	case strings.HasPrefix(num, "234"):
		return "+" + num, nil
	case len(num) < 7:
		return "", fmt.Errorf("phone number %q too short", raw)
	default:
		return "+" + num, nil
	}
}
