// Package redact masks secret material before it reaches logs or errors.
package redact

import "strings"

// Token masks a secret, keeping the first and last three characters for
// diagnostics. Values of six characters or fewer are masked entirely.
func Token(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return strings.Repeat("*", len(s))
	}
	return s[:3] + strings.Repeat("*", len(s)-6) + s[len(s)-3:]
}
