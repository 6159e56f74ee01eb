package runner

import "regexp"

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValidEmail applies the syntactic address check used before every send.
func IsValidEmail(s string) bool { return emailRe.MatchString(s) }
