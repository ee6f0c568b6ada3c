// Package logger records structured ingestion and security events.
package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"
)

// maxLoggedBody bounds text/html fields copied into a parse failure entry
const maxLoggedBody = 2048

// EventLogger writes one JSON log entry per ingestion or security event.
// Sensitive keys are never logged.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger wraps an existing logger. A nil logger writes JSON to stdout.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &EventLogger{logger: logger}
}

// ParseFailure logs a payload that could not be parsed, with sensitive
// headers redacted and long bodies truncated.
func (e *EventLogger) ParseFailure(payload any, err error) {
	e.logger.Warn("inbound_parse_failure",
		slog.String("event_type", "parse_failure"),
		slog.String("error", err.Error()),
		slog.Any("payload", RedactPayload(payload)),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// RoutingFailure logs an email addressed to a domain no team owns
func (e *EventLogger) RoutingFailure(domain, messageID string) {
	e.logger.Warn("inbound_routing_failure",
		slog.String("event_type", "routing_failure"),
		slog.String("domain", domain),
		slog.String("message_id", messageID),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// DuplicateDelivery logs a redelivered Message-ID
func (e *EventLogger) DuplicateDelivery(teamID uint, messageID, policy string) {
	e.logger.Info("inbound_duplicate",
		slog.String("event_type", "duplicate"),
		slog.Uint64("team_id", uint64(teamID)),
		slog.String("message_id", messageID),
		slog.String("policy", policy),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// Skipped logs an email dropped by an ingestion filter
func (e *EventLogger) Skipped(filter, messageID, from string) {
	e.logger.Info("inbound_skipped",
		slog.String("event_type", "skipped"),
		slog.String("filter", filter),
		slog.String("message_id", messageID),
		slog.String("from", from),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// AuthFailure logs a failed authentication attempt.
// Never logs the actual credentials.
func (e *EventLogger) AuthFailure(ip, path, reason string) {
	e.logger.Warn("authentication_failure",
		slog.String("event_type", "auth_failure"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// RateLimitExceeded logs when a client exceeds rate limits
func (e *EventLogger) RateLimitExceeded(ip, path string) {
	e.logger.Warn("rate_limit_exceeded",
		slog.String("event_type", "rate_limit"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// InvalidOrigin logs a rejected WebSocket connection
func (e *EventLogger) InvalidOrigin(ip, origin string) {
	e.logger.Warn("invalid_origin",
		slog.String("event_type", "invalid_origin"),
		slog.String("ip", ip),
		slog.String("origin", origin),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// Logger returns the underlying slog.Logger
func (e *EventLogger) Logger() *slog.Logger {
	return e.logger
}

// RedactPayload converts payload to a generic map suitable for logging.
// Keys that look like credentials are replaced, attachment contents are
// dropped and body fields are truncated.
func RedactPayload(payload any) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "<unserializable payload>"
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}
	return redact(generic, "")
}

func redact(value any, key string) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			switch {
			case isSensitiveKey(k):
				out[k] = "[REDACTED]"
			case strings.EqualFold(k, "content"):
				out[k] = "[OMITTED]"
			default:
				out[k] = redact(inner, k)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = redact(inner, key)
		}
		return out
	case string:
		if (key == "text" || key == "html") && len(v) > maxLoggedBody {
			return v[:maxLoggedBody] + "...(truncated)"
		}
		return v
	default:
		return v
	}
}

// isSensitiveKey checks if a key might contain sensitive data
func isSensitiveKey(key string) bool {
	sensitiveKeys := map[string]bool{
		"password":      true,
		"api_key":       true,
		"apikey":        true,
		"x-api-key":     true,
		"token":         true,
		"secret":        true,
		"authorization": true,
		"auth":          true,
		"credential":    true,
		"credentials":   true,
		"session":       true,
		"cookie":        true,
		"set-cookie":    true,
	}
	return sensitiveKeys[strings.ToLower(key)]
}
