package logsink

import (
	"strings"
)

// sensitiveHeaders is the case-insensitive header set masked before a
// LogRecord is persisted.
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"api-key":       true,
}

// SanitizeAuthorization masks a credential-bearing header value, preserving
// a leading "Bearer " prefix (case-insensitive) and the first 4 / last 2
// characters of the token so operators can still recognize a key in logs.
// Tokens shorter than 9 characters collapse to "***" since there isn't
// enough of the value to mask without leaking it.
func SanitizeAuthorization(value string) string {
	prefix := ""
	token := value
	if len(value) >= 7 && strings.EqualFold(value[:7], "bearer ") {
		prefix = value[:7]
		token = value[7:]
	}
	if len(token) < 9 {
		return prefix + "***"
	}
	return prefix + token[:4] + "***...***" + token[len(token)-2:]
}

// SanitizeHeaders returns a copy of headers with every sensitive header
// value masked via SanitizeAuthorization. The original map is untouched.
func SanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[strings.ToLower(k)] {
			out[k] = SanitizeAuthorization(v)
		} else {
			out[k] = v
		}
	}
	return out
}
