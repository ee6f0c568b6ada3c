// Package validator provides input validation and sanitization for
// inbound mail and admin input.
package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Validation errors
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrInvalidMessageID = errors.New("invalid message-id")
	ErrInputTooLong     = errors.New("input exceeds maximum length")
	ErrInvalidCharacter = errors.New("input contains invalid characters")
	ErrEmptyInput       = errors.New("input cannot be empty")
)

// Regex patterns for validation
var (
	// Domain regex: allows lowercase alphanumeric, hyphens, and dots
	// Must start and end with alphanumeric, labels max 63 chars
	domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)
)

// htmlPolicy strips scripts, event handlers and other active content from
// inbound HTML bodies. Newsletter-style markup survives: inline styles,
// embedded cid: and data: images, and links that open outside the app.
var htmlPolicy = newHTMLPolicy()

func newHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowURLSchemes("mailto", "http", "https", "cid")
	p.AllowDataURIImages()
	p.AllowStyling()
	p.AllowStyles("color", "background-color", "font-size", "font-weight", "font-family", "font-style",
		"text-align", "text-decoration", "line-height", "margin", "padding", "border", "width", "height").Globally()
	p.AllowAttrs("width", "height", "align", "bgcolor", "border", "cellpadding", "cellspacing", "valign").
		OnElements("table", "tr", "td", "th", "img")
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Address limits from RFC 5321
const (
	maxAddressLength = 254
	maxLocalLength   = 64
)

// ValidateAddress checks a bare addr-spec such as "user@example.com" that
// the mail parser rejected: a non-empty local part without spaces or
// brackets, and a valid domain.
func ValidateAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(addr) > maxAddressLength {
		return ErrInputTooLong
	}

	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return ErrInvalidEmail
	}
	local, domain := addr[:at], addr[at+1:]
	if len(local) > maxLocalLength || strings.ContainsAny(local, "@<>()[]\\,;: \t\"") {
		return ErrInvalidEmail
	}
	if err := ValidateDomain(domain); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateDomain validates domain name format against DNS standards.
// Returns nil if valid, or an appropriate error.
func ValidateDomain(domain string) error {
	domain = strings.TrimSpace(strings.ToLower(domain))

	if domain == "" {
		return ErrEmptyInput
	}

	// RFC 1035 specifies max domain length of 253 characters
	if len(domain) > 253 {
		return ErrInputTooLong
	}

	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}

	return nil
}

// MaxMessageIDLength is the RFC 5322 line length limit
const MaxMessageIDLength = 998

// ValidateMessageID checks that a Message-ID is usable as a storage key:
// non-empty, within the line limit, and free of whitespace or control characters.
func ValidateMessageID(id string) error {
	if id == "" {
		return ErrEmptyInput
	}
	if len(id) > MaxMessageIDLength {
		return ErrInputTooLong
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidMessageID
		}
	}
	return nil
}

// SanitizeHTML removes active content from an HTML email body
func SanitizeHTML(html string) string {
	return htmlPolicy.Sanitize(html)
}

// Pagination constants
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ValidatePagination validates and sanitizes pagination parameters.
// Returns sanitized limit and offset values.
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// SanitizeFilename removes dangerous characters from filename.
// Prevents path traversal and removes control characters.
func SanitizeFilename(filename string) string {
	// Remove path separators to prevent path traversal
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")

	// Remove null bytes
	filename = strings.ReplaceAll(filename, "\x00", "")

	// Remove control characters (ASCII 0-31 and 127)
	filename = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, filename)

	// Trim whitespace
	filename = strings.TrimSpace(filename)

	// Limit length to 255 characters (common filesystem limit)
	if utf8.RuneCountInString(filename) > 255 {
		runes := []rune(filename)
		filename = string(runes[:255])
	}

	// Fallback for empty filename
	if filename == "" {
		return "unnamed"
	}

	return filename
}

// SanitizeString removes potentially dangerous characters and enforces length limits.
// Removes control characters and trims whitespace.
func SanitizeString(input string, maxLength int) string {
	// Remove control characters (ASCII 0-31 and 127)
	input = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, input)

	// Trim whitespace
	input = strings.TrimSpace(input)

	// Enforce maximum length if specified
	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}

	return input
}
