package smtp

import (
	"io"
	"strings"

	"github.com/jhillyerd/enmime"

	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/ingest"
)

// headers copied into the payload as first-class fields
var structuredHeaders = map[string]bool{
	"From":        true,
	"To":          true,
	"Cc":          true,
	"Bcc":         true,
	"Subject":     true,
	"Message-Id":  true,
	"In-Reply-To": true,
	"References":  true,
	"Date":        true,
}

// ParseMessage converts a raw RFC 5322 message into an inbound payload.
// RFC 2047 encoded headers are decoded; MIME parts become text, html and
// attachments.
func ParseMessage(r io.Reader) (*ingest.InboundPayload, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, apperrors.NewParseError("message", err.Error())
	}

	payload := &ingest.InboundPayload{
		From:       env.GetHeader("From"),
		To:         addressList(env, "To"),
		Cc:         addressList(env, "Cc"),
		Subject:    env.GetHeader("Subject"),
		MessageID:  env.GetHeader("Message-Id"),
		InReplyTo:  env.GetHeader("In-Reply-To"),
		References: ingest.StringList{env.GetHeader("References")},
		Date:       env.GetHeader("Date"),
		Headers:    ingest.HeaderMap{},
	}
	if env.Text != "" {
		text := env.Text
		payload.Text = &text
	}
	if env.HTML != "" {
		html := env.HTML
		payload.HTML = &html
	}

	for _, key := range env.GetHeaderKeys() {
		if structuredHeaders[key] {
			continue
		}
		payload.Headers[key] = strings.Join(env.GetHeaderValues(key), ", ")
	}

	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for _, part := range parts {
		if part.FileName == "" {
			continue
		}
		payload.Attachments = append(payload.Attachments, ingest.InboundAttachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Content:     part.Content,
		})
	}

	return payload, nil
}

// addressList returns the header's mailboxes one per entry. Headers that do
// not parse as an address list are passed through whole.
func addressList(env *enmime.Envelope, header string) ingest.StringList {
	raw := env.GetHeader(header)
	if raw == "" {
		return nil
	}
	addrs, err := env.AddressList(header)
	if err != nil || len(addrs) == 0 {
		return ingest.StringList{raw}
	}
	out := make(ingest.StringList, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}
