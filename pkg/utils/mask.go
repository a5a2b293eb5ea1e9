package utils

import "regexp"

var bearerRegex = regexp.MustCompile(`(?i)(bearer\s+)(\S+)`)

// MaskToken truncates a session token for log output, keeping enough of the
// head and tail to correlate against browser captures.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:6] + "..." + token[len(token)-4:]
}

// MaskAuthHeader masks the token portion of an Authorization header value.
func MaskAuthHeader(header string) string {
	return bearerRegex.ReplaceAllString(header, "${1}***")
}
