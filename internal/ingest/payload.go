package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// InboundPayload is the webhook body for one inbound email
type InboundPayload struct {
	From        string              `json:"from"`
	To          StringList          `json:"to"`
	Cc          StringList          `json:"cc,omitempty"`
	Bcc         StringList          `json:"bcc,omitempty"`
	Subject     string              `json:"subject"`
	MessageID   string              `json:"message_id"`
	Text        *string             `json:"text,omitempty"`
	HTML        *string             `json:"html,omitempty"`
	InReplyTo   string              `json:"in_reply_to,omitempty"`
	References  StringList          `json:"references,omitempty"`
	Date        string              `json:"date,omitempty"`
	Headers     HeaderMap           `json:"headers,omitempty"`
	Attachments []InboundAttachment `json:"attachments,omitempty"`
}

// InboundAttachment is a file sent alongside the payload. Content is
// base64 in JSON.
type InboundAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// StringList accepts either a single JSON string or an array of strings.
// Empty entries are dropped.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = compact([]string{s})
		return nil
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("expected a list of strings: %w", err)
		}
		*l = compact(items)
		return nil
	default:
		return fmt.Errorf("expected a string or a list of strings, got %s", string(data))
	}
}

// HeaderMap holds raw headers. Values may arrive as a string, a list of
// strings (joined with ", ") or a scalar.
type HeaderMap map[string]string

// UnmarshalJSON implements json.Unmarshaler
func (h *HeaderMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("headers must be an object: %w", err)
	}
	if raw == nil {
		*h = nil
		return nil
	}

	out := make(HeaderMap, len(raw))
	for key, value := range raw {
		var list StringList
		if err := json.Unmarshal(value, &list); err == nil {
			out[key] = strings.Join(list, ", ")
			continue
		}
		// numbers and booleans keep their JSON text
		out[key] = strings.Trim(string(bytes.TrimSpace(value)), `"`)
	}
	*h = out
	return nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
