package ingest

import (
	"net/mail"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/validator"
)

var (
	messageIDPattern = regexp.MustCompile(`<([^<>]+)>`)
	// "Name" <addr> or Name <addr> or a bare addr
	looseAddressPattern = regexp.MustCompile(`^(?:"?([^"<]*)"?\s*)?<?([^<>\s]+@[^<>\s]+)>?$`)
)

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Parser turns an InboundPayload into a ParsedEmail
type Parser struct {
	sanitizeHTML func(string) string
}

// NewParser creates a Parser that sanitizes HTML bodies
func NewParser() *Parser {
	return &Parser{sanitizeHTML: validator.SanitizeHTML}
}

// Parse validates and normalizes a payload. It fails with a
// *errors.ParseError when there is no usable sender, no usable recipient
// or no Message-ID.
func (p *Parser) Parse(payload *InboundPayload) (*ParsedEmail, error) {
	if payload == nil {
		return nil, apperrors.NewParseError("payload", "empty")
	}

	headers := normalizeHeaders(payload.Headers)

	fromList := parseAddressList([]string{firstNonEmpty(payload.From, headers["From"])})
	if len(fromList) == 0 {
		return nil, apperrors.NewParseError("from", "no valid sender address")
	}

	email := &ParsedEmail{
		From:    fromList[0],
		To:      parseAddressList(payload.To),
		Cc:      parseAddressList(payload.Cc),
		Bcc:     parseAddressList(payload.Bcc),
		Subject: payload.Subject,
		Headers: headers,
	}
	if len(email.To)+len(email.Cc)+len(email.Bcc) == 0 {
		return nil, apperrors.NewParseError("to", "no valid recipient address")
	}

	email.MessageID = normalizeMessageID(firstNonEmpty(payload.MessageID, headers["Message-Id"]))
	if email.MessageID == "" {
		return nil, apperrors.NewParseError("message_id", "missing")
	}
	if err := validator.ValidateMessageID(email.MessageID); err != nil {
		return nil, apperrors.NewParseError("message_id", err.Error())
	}

	if ids := parseMessageIDs(firstNonEmpty(payload.InReplyTo, headers["In-Reply-To"])); len(ids) > 0 {
		email.InReplyTo = ids[0]
	}
	refs := []string(payload.References)
	if len(refs) == 0 && headers["References"] != "" {
		refs = []string{headers["References"]}
	}
	email.References = uniqueMessageIDs(email.MessageID, refs)

	email.Date = parseDate(firstNonEmpty(payload.Date, headers["Date"]))

	if payload.Text != nil && *payload.Text != "" {
		text := *payload.Text
		email.TextContent = &text
	}
	if payload.HTML != nil && *payload.HTML != "" {
		html := p.sanitizeHTML(*payload.HTML)
		email.HTMLContent = &html
	}

	for _, att := range payload.Attachments {
		if len(att.Content) == 0 {
			continue
		}
		email.Attachments = append(email.Attachments, Attachment{
			Filename:    validator.SanitizeFilename(att.Filename),
			ContentType: firstNonEmpty(att.ContentType, "application/octet-stream"),
			Content:     att.Content,
		})
	}

	return email, nil
}

// parseAddressList splits every entry on commas and semicolons and parses
// each piece. Unparsable pieces are dropped.
func parseAddressList(entries []string) []models.Address {
	var out []models.Address
	for _, entry := range entries {
		for _, piece := range splitAddresses(entry) {
			if addr, ok := parseAddress(piece); ok {
				out = append(out, addr)
			}
		}
	}
	return out
}

// splitAddresses splits on ',' and ';' outside quotes and angle brackets
func splitAddresses(s string) []string {
	var (
		parts   []string
		current strings.Builder
		quoted  bool
		angle   int
	)
	flush := func() {
		if piece := strings.TrimSpace(current.String()); piece != "" {
			parts = append(parts, piece)
		}
		current.Reset()
	}
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
		case r == '<' && !quoted:
			angle++
		case r == '>' && !quoted && angle > 0:
			angle--
		case (r == ',' || r == ';') && !quoted && angle == 0:
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return parts
}

// parseAddress parses one mailbox. RFC 2047 encoded display names are decoded.
func parseAddress(s string) (models.Address, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Address{}, false
	}
	if addr, err := gomail.ParseAddress(s); err == nil && strings.Contains(addr.Address, "@") {
		return models.Address{Address: addr.Address, Name: strings.TrimSpace(addr.Name)}, true
	}

	// Loose fallback for display names net/mail rejects (unquoted dots, etc.)
	matches := looseAddressPattern.FindStringSubmatch(s)
	if len(matches) < 3 {
		return models.Address{}, false
	}
	address := strings.TrimSpace(matches[2])
	if validator.ValidateAddress(address) != nil {
		return models.Address{}, false
	}
	return models.Address{Address: address, Name: strings.Trim(strings.TrimSpace(matches[1]), `"`)}, true
}

// normalizeMessageID returns id in its canonical "<local@domain>" form
func normalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "\"")
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(value, "<"), ">"))
	if value == "" {
		return ""
	}
	return "<" + value + ">"
}

// parseMessageIDs extracts ids from a header-like value. Bracketed ids are
// taken as they appear; otherwise the value is split on whitespace and commas.
func parseMessageIDs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var ids []string
	if matches := messageIDPattern.FindAllStringSubmatch(raw, -1); len(matches) > 0 {
		for _, m := range matches {
			if id := normalizeMessageID(m[1]); id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	}
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	}) {
		if id := normalizeMessageID(field); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// uniqueMessageIDs flattens the raw values into an ordered, de-duplicated
// list, leaving out self.
func uniqueMessageIDs(self string, values []string) []string {
	seen := map[string]struct{}{self: {}}
	var ids []string
	for _, raw := range values {
		for _, id := range parseMessageIDs(raw) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if t, err := mail.ParseDate(value); err == nil {
		t = t.UTC()
		return &t
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func normalizeHeaders(in HeaderMap) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[canonicalHeaderKey(key)] = strings.TrimSpace(value)
	}
	return out
}

func canonicalHeaderKey(key string) string {
	return textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
