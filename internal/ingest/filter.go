package ingest

import (
	"strings"
)

// Filter decides whether an email should be dropped before routing.
// Skip returns the reason reported to the caller when it drops the email.
type Filter interface {
	ID() string
	Skip(email *ParsedEmail) (bool, string)
}

// ReasonAutoReply is reported for machine-generated responses
const ReasonAutoReply = "auto-reply"

var autoReplySubjectPrefixes = []string{
	"automatic reply",
	"auto-reply",
	"auto reply",
	"autoreply",
	"auto response",
	"out of office",
	"out of the office",
	"abwesenheitsnotiz",
	"réponse automatique",
}

// AutoReplyFilter drops vacation responders and other auto-submitted mail
type AutoReplyFilter struct {
	prefixes []string
}

// NewAutoReplyFilter creates the filter with the default subject prefixes
// plus any extra ones.
func NewAutoReplyFilter(extraPrefixes ...string) *AutoReplyFilter {
	prefixes := append([]string{}, autoReplySubjectPrefixes...)
	for _, p := range extraPrefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &AutoReplyFilter{prefixes: prefixes}
}

// ID implements Filter
func (f *AutoReplyFilter) ID() string { return "auto-reply" }

// Skip implements Filter
func (f *AutoReplyFilter) Skip(email *ParsedEmail) (bool, string) {
	if f.IsAutoReply(email.Subject, email.Headers) {
		return true, ReasonAutoReply
	}
	return false, ""
}

// IsAutoReply applies the subject and header heuristics
func (f *AutoReplyFilter) IsAutoReply(subject string, headers map[string]string) bool {
	s := strings.ToLower(strings.TrimSpace(subject))
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return hasAutoReplyHeader(headers)
}

func hasAutoReplyHeader(headers map[string]string) bool {
	if len(headers) == 0 {
		return false
	}
	if v, ok := headers["Auto-Submitted"]; ok {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" && v != "no" {
			return true
		}
	}
	for _, marker := range []string{"X-Autoreply", "X-Autorespond", "X-Auto-Response-Suppress"} {
		if v, ok := headers[marker]; ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	precedence := strings.ToLower(strings.TrimSpace(headers["Precedence"]))
	return precedence == "auto_reply"
}
