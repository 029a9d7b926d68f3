package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// redactions match credentials that end up inside URLs and messages.
// Telegram bot tokens and Apps Script deployment ids are both channel credentials.
var redactions = []redaction{
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9-._~+/]+=*`), "${1}" + redactedValue},
	{regexp.MustCompile(`(api\.telegram\.org/bot)[0-9]{5,}:[A-Za-z0-9_-]{20,}`), "${1}" + redactedValue},
	{regexp.MustCompile(`(script\.google\.com/macros/s/)[A-Za-z0-9_-]{10,}`), "${1}" + redactedValue},
	{regexp.MustCompile(`(?i)((token|secret|passw(or)?d)[\s:=]+)[^;,\s]{5,}`), "${1}" + redactedValue},
	{regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+(@)`), "${1}" + redactedValue + "${2}"},
}

var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "credential", "channel_id", "dsn",
}

// RedactSensitiveData replaces credentials in s with [REDACTED]
func RedactSensitiveData(s string) string {
	if s == "" {
		return s
	}
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}
