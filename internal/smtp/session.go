package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-smtp"

	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/ingest"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
)

var (
	errNoRecipients = &smtp.SMTPError{
		Code:         503,
		EnhancedCode: smtp.EnhancedCode{5, 5, 1},
		Message:      "No recipients specified",
	}
	errTemporary = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Temporary error, try again later",
	}
	errUnparsable = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 6, 0},
		Message:      "Failed to parse email",
	}
)

func rejectRecipient(message string) *smtp.SMTPError {
	return &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      message,
	}
}

// Session implements the go-smtp Session interface
type Session struct {
	backend    *Backend
	remoteAddr string
	from       string
	recipients []string
}

// NewSession creates a new SMTP session
func NewSession(backend *Backend, remoteAddr string) *Session {
	return &Session{
		backend:    backend,
		remoteAddr: remoteAddr,
		recipients: make([]string, 0),
	}
}

// Mail handles the MAIL FROM command
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	if s.backend.logger != nil {
		s.backend.logger.Debug("MAIL FROM", slog.String("from", from))
	}
	return nil
}

// Rcpt handles RCPT TO. Only addresses on an active team domain are accepted.
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	address, domain, err := parseEmailAddress(to)
	if err != nil {
		return rejectRecipient("Invalid recipient address")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.ingestTimeout)
	defer cancel()

	team, err := s.backend.teams.GetByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return rejectRecipient("No team configured for domain: " + domain)
		}
		if s.backend.logger != nil {
			s.backend.logger.Error("team lookup failed", slog.String("domain", domain), slog.Any("error", err))
		}
		return errTemporary
	}
	if !team.IsActive {
		return rejectRecipient("Team is not accepting mail")
	}

	s.recipients = append(s.recipients, address)
	if s.backend.logger != nil {
		s.backend.logger.Debug("RCPT TO", slog.String("to", address), slog.Uint64("team_id", uint64(team.ID)))
	}
	return nil
}

// Data receives the message and ingests it once per recipient domain, so
// mail addressed to several teams reaches each of them.
func (s *Session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return errNoRecipients
	}

	payload, err := ParseMessage(r)
	if err != nil {
		if s.backend.logger != nil {
			s.backend.logger.Warn("failed to parse email",
				slog.String("remote_addr", s.remoteAddr),
				slog.Any("error", err))
		}
		return errUnparsable
	}
	if payload.From == "" {
		payload.From = s.from
	}

	for _, group := range groupByDomain(s.recipients) {
		if err := s.ingest(withRecipients(payload, group), group); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) ingest(payload *ingest.InboundPayload, recipients []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.backend.ingestTimeout)
	defer cancel()

	result, err := s.backend.ingester.Ingest(ctx, payload)
	if err != nil {
		var dupErr *apperrors.DuplicateError
		switch {
		case errors.As(err, &dupErr):
			// already stored; the sender must not retry
			return nil
		case apperrors.IsParseError(err):
			return &smtp.SMTPError{
				Code:         550,
				EnhancedCode: smtp.EnhancedCode{5, 6, 0},
				Message:      err.Error(),
			}
		default:
			if s.backend.logger != nil {
				s.backend.logger.Error("failed to ingest email",
					slog.String("message_id", payload.MessageID),
					slog.Any("recipients", recipients),
					slog.Any("error", err))
			}
			return errTemporary
		}
	}

	if !result.Success {
		return rejectRecipient(result.Reason)
	}
	if s.backend.logger != nil {
		s.backend.logger.Info("email received",
			slog.String("from", s.from),
			slog.Any("recipients", recipients),
			slog.Uint64("thread_id", uint64(result.ThreadID)),
			slog.Bool("skipped", result.Skipped))
	}
	return nil
}

// Reset resets the session state
func (s *Session) Reset() {
	s.from = ""
	s.recipients = make([]string, 0)
}

// Logout handles the end of the session
func (s *Session) Logout() error {
	return nil
}

// withRecipients copies payload with the envelope recipients first in To,
// followed by header addresses not already present.
func withRecipients(payload *ingest.InboundPayload, recipients []string) *ingest.InboundPayload {
	out := *payload
	seen := make(map[string]bool, len(recipients))
	to := make(ingest.StringList, 0, len(recipients)+len(payload.To))
	for _, rcpt := range recipients {
		seen[rcpt] = true
		to = append(to, rcpt)
	}
	for _, entry := range payload.To {
		if address, _, err := parseEmailAddress(entry); err == nil && seen[address] {
			continue
		}
		to = append(to, entry)
	}
	out.To = to
	return &out
}

// groupByDomain groups recipients by domain, keeping first-seen order
func groupByDomain(recipients []string) [][]string {
	index := make(map[string]int)
	var groups [][]string
	for _, rcpt := range recipients {
		_, domain, err := parseEmailAddress(rcpt)
		if err != nil {
			continue
		}
		i, ok := index[domain]
		if !ok {
			i = len(groups)
			index[domain] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], rcpt)
	}
	return groups
}

// parseEmailAddress returns the lower-cased address and its domain. A
// display name in front of the angle-bracketed address is ignored.
func parseEmailAddress(address string) (string, string, error) {
	address = strings.TrimSpace(address)
	if start := strings.LastIndex(address, "<"); start >= 0 {
		address = strings.TrimSuffix(address[start+1:], ">")
	}
	address = strings.ToLower(strings.TrimSpace(address))

	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}
	return address, parts[1], nil
}
