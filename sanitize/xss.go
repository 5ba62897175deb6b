// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sanitize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)<iframe[^>]*>`),
	regexp.MustCompile(`(?i)<object[^>]*>`),
	regexp.MustCompile(`(?i)<embed[^>]*>`),
	regexp.MustCompile(`(?i)<link[^>]*>`),
	regexp.MustCompile(`(?i)<meta[^>]*>`),
	regexp.MustCompile(`(?i)expression\s*\(`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)data:text/html`),
}

// DetectXSS returns whether the text contains markup or URL schemes that
// are commonly used in script injection attempts.
func DetectXSS(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range xssPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectXSSFields runs DetectXSS against every field and returns the sorted
// names of the fields that matched.
func DetectXSSFields(fields map[string]string) []string {
	var hits []string
	for k, v := range fields {
		if DetectXSS(v) {
			hits = append(hits, k)
		}
	}
	sort.Strings(hits)
	return hits
}

// Security event types.
const (
	EventXSSAttempt     = "xss_attempt"
	EventInvalidUpload  = "invalid_upload"
	EventAccessDenied   = "access_denied"
	EventResetRequested = "password_reset_requested"
	EventResetCompleted = "password_reset_completed"
	EventResetBadCode   = "password_reset_invalid_code"
)

// LogSecurityEvent records a security relevant event at warning level.
func LogSecurityEvent(eventType, userID string, details map[string]string) {
	if userID == "" {
		userID = "anonymous"
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v=%q", k, details[k])
	}
	log.Warnf("Security event: %v | user: %v | details: %v",
		eventType, userID, b.String())
}
