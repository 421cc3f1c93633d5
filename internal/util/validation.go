package util

import (
	"regexp"
)

var sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9]{12}$`)

func IsValidSessionID(s string) bool {
	if s == "" {
		return false
	}
	return sessionIDRegex.MatchString(s)
}
