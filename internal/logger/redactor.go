package logger

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// Redactor masks sensitive values before they reach log output.
type Redactor struct {
	sensitiveKeys map[string]struct{}
	patterns      []*regexp.Regexp
}

// DefaultRedactor returns a redactor covering the usual credential-shaped
// fields plus JWT-looking substrings.
func DefaultRedactor() *Redactor {
	keys := []string{
		"password", "password_hash", "secret", "token",
		"access_token", "refresh_token", "authorization", "api_key",
	}
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}

	return &Redactor{
		sensitiveKeys: keySet,
		patterns: []*regexp.Regexp{
			// JWT: three base64url segments separated by dots
			regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
			// Bearer tokens in header dumps
			regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]+=*`),
		},
	}
}

// Redact replaces sensitive substrings in a message.
func (r *Redactor) Redact(msg string) string {
	for _, p := range r.patterns {
		msg = p.ReplaceAllString(msg, redactedPlaceholder)
	}
	return msg
}

// RedactFields returns a copy of fields with sensitive keys masked.
func (r *Redactor) RedactFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if _, sensitive := r.sensitiveKeys[strings.ToLower(k)]; sensitive {
			out[k] = redactedPlaceholder
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = r.Redact(s)
			continue
		}
		out[k] = v
	}
	return out
}
