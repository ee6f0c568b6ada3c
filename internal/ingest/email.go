package ingest

import (
	"time"

	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
)

// ParsedEmail is the normalized form of an inbound email.
// MessageID is always non-empty.
type ParsedEmail struct {
	From        models.Address
	To          []models.Address
	Cc          []models.Address
	Bcc         []models.Address
	Subject     string
	TextContent *string
	HTMLContent *string
	MessageID   string
	InReplyTo   string
	// References is ordered oldest ancestor first
	References  []string
	Date        *time.Time
	Headers     map[string]string
	Attachments []Attachment
}

// Attachment is a decoded file carried by a ParsedEmail
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// RoutingAddress is the recipient used to pick the owning team: the first
// To address, or the first Cc/Bcc when To is empty.
func (e *ParsedEmail) RoutingAddress() (models.Address, bool) {
	for _, list := range [][]models.Address{e.To, e.Cc, e.Bcc} {
		if len(list) > 0 {
			return list[0], true
		}
	}
	return models.Address{}, false
}

// Participants returns every address on the email tagged with its role
func (e *ParsedEmail) Participants() []models.Participant {
	participants := []models.Participant{{Address: e.From.Address, Name: e.From.Name, Role: models.RoleFrom}}
	add := func(list []models.Address, role models.ParticipantRole) {
		for _, a := range list {
			participants = append(participants, models.Participant{Address: a.Address, Name: a.Name, Role: role})
		}
	}
	add(e.To, models.RoleTo)
	add(e.Cc, models.RoleCc)
	add(e.Bcc, models.RoleBcc)
	merged, _ := models.MergeParticipants(nil, participants)
	return merged
}

// Header returns a header value by canonical name
func (e *ParsedEmail) Header(name string) string {
	if e.Headers == nil {
		return ""
	}
	return e.Headers[canonicalHeaderKey(name)]
}

// ThreadCandidates lists the Message-IDs a reply may point at, in lookup order
func (e *ParsedEmail) ThreadCandidates() []string {
	candidates := make([]string, 0, len(e.References)+1)
	if e.InReplyTo != "" {
		candidates = append(candidates, e.InReplyTo)
	}
	return append(candidates, e.References...)
}
