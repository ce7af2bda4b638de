package logger

import (
	"regexp"
	"strings"
)

// SensitiveDataPatterns contains regex patterns for sensitive data that should be redacted in logs
var SensitiveDataPatterns = []*regexp.Regexp{
	// Auth tokens (Bearer, JWT)
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(eyJ[a-zA-Z0-9_-]{5,}\.eyJ[a-zA-Z0-9_-]{5,})\.[a-zA-Z0-9_-]{5,}`),

	// Passwords, tokens and secrets in key=value form
	regexp.MustCompile(`(?i)((token|secret|passw(or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,&\s]{3,})`),
}

// SensitiveKeywords are keywords that indicate fields may contain sensitive data
var SensitiveKeywords = []string{"password", "passwd", "secret", "token", "authorization", "cookie"}

// RedactSensitiveData replaces sensitive information with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range SensitiveDataPatterns {
		input = pattern.ReplaceAllString(input, "$1[REDACTED]")
	}
	return input
}

// IsSensitiveKey reports whether a field or header name likely holds a secret.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range SensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}
