package core

import "regexp"

// Optional '+', optional country code 1, then 9 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

// ValidatePhone reports whether s is an accepted phone number.
func ValidatePhone(s string) bool {
	return phonePattern.MatchString(s)
}
