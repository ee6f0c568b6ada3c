// Package fixtures builds teams, messages and inbound payloads for tests.
package fixtures

import (
	"fmt"
	"time"

	"github.com/welldanyogia/webrana-inbox-backend/internal/ingest"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
)

// TeamBuilder creates test Team instances with fluent API
type TeamBuilder struct {
	team models.Team
}

// NewTeamBuilder creates a new TeamBuilder with sensible defaults
func NewTeamBuilder() *TeamBuilder {
	return &TeamBuilder{
		team: models.Team{
			Name:     "Support",
			Domain:   "ourteam.io",
			IsActive: true,
		},
	}
}

// WithID sets the team ID
func (b *TeamBuilder) WithID(id uint) *TeamBuilder {
	b.team.ID = id
	return b
}

// WithName sets the team name
func (b *TeamBuilder) WithName(name string) *TeamBuilder {
	b.team.Name = name
	return b
}

// WithDomain sets the receiving domain
func (b *TeamBuilder) WithDomain(domain string) *TeamBuilder {
	b.team.Domain = domain
	return b
}

// WithActive sets whether the team accepts mail
func (b *TeamBuilder) WithActive(active bool) *TeamBuilder {
	b.team.IsActive = active
	return b
}

// Build returns the constructed Team
func (b *TeamBuilder) Build() *models.Team {
	team := b.team
	return &team
}

// PayloadBuilder creates inbound webhook payloads
type PayloadBuilder struct {
	payload ingest.InboundPayload
}

// NewPayloadBuilder starts a customer email to support@ourteam.io
func NewPayloadBuilder() *PayloadBuilder {
	text := "My order #1234 has not arrived."
	return &PayloadBuilder{
		payload: ingest.InboundPayload{
			From:      "Jane Customer <jane@acme.com>",
			To:        ingest.StringList{"support@ourteam.io"},
			Subject:   "Order problem",
			MessageID: "<order-1@acme.com>",
			Text:      &text,
			Date:      "Mon, 15 Jan 2024 10:00:00 +0000",
		},
	}
}

// WithFrom sets the sender
func (b *PayloadBuilder) WithFrom(from string) *PayloadBuilder {
	b.payload.From = from
	return b
}

// WithTo sets the recipients
func (b *PayloadBuilder) WithTo(to ...string) *PayloadBuilder {
	b.payload.To = to
	return b
}

// WithSubject sets the subject
func (b *PayloadBuilder) WithSubject(subject string) *PayloadBuilder {
	b.payload.Subject = subject
	return b
}

// WithMessageID sets the Message-ID
func (b *PayloadBuilder) WithMessageID(id string) *PayloadBuilder {
	b.payload.MessageID = id
	return b
}

// InReplyTo makes the payload a reply to parent
func (b *PayloadBuilder) InReplyTo(parent string, references ...string) *PayloadBuilder {
	b.payload.InReplyTo = parent
	b.payload.References = references
	if len(b.payload.Subject) < 4 || b.payload.Subject[:4] != "Re: " {
		b.payload.Subject = "Re: " + b.payload.Subject
	}
	return b
}

// WithText sets the plain text body
func (b *PayloadBuilder) WithText(text string) *PayloadBuilder {
	b.payload.Text = &text
	return b
}

// WithHeader adds a raw header
func (b *PayloadBuilder) WithHeader(key, value string) *PayloadBuilder {
	if b.payload.Headers == nil {
		b.payload.Headers = ingest.HeaderMap{}
	}
	b.payload.Headers[key] = value
	return b
}

// WithAttachment adds a file
func (b *PayloadBuilder) WithAttachment(filename, contentType string, content []byte) *PayloadBuilder {
	b.payload.Attachments = append(b.payload.Attachments, ingest.InboundAttachment{
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	})
	return b
}

// Build returns the constructed payload
func (b *PayloadBuilder) Build() *ingest.InboundPayload {
	payload := b.payload
	return &payload
}

// Conversation returns n payloads where each replies to the previous one
func Conversation(n int) []*ingest.InboundPayload {
	var (
		out        []*ingest.InboundPayload
		references []string
	)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("<conv-%d@acme.com>", i)
		b := NewPayloadBuilder().WithMessageID(id)
		if i > 0 {
			b.InReplyTo(references[len(references)-1], references...)
		}
		out = append(out, b.Build())
		references = append(references, id)
	}
	return out
}

// MessageBuilder creates stored Message rows
type MessageBuilder struct {
	message models.Message
}

// NewMessageBuilder creates a new MessageBuilder with sensible defaults
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		message: models.Message{
			TeamID:      1,
			ThreadID:    1,
			MessageID:   "<order-1@acme.com>",
			FromAddress: "jane@acme.com",
			FromName:    "Jane Customer",
			To:          []models.Address{{Address: "support@ourteam.io"}},
			Subject:     "Order problem",
			Direction:   models.DirectionInbound,
			CreatedAt:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		},
	}
}

// WithID sets the message ID
func (b *MessageBuilder) WithID(id uint) *MessageBuilder {
	b.message.ID = id
	return b
}

// WithTeam sets the owning team
func (b *MessageBuilder) WithTeam(teamID uint) *MessageBuilder {
	b.message.TeamID = teamID
	return b
}

// WithThread sets the thread
func (b *MessageBuilder) WithThread(threadID uint) *MessageBuilder {
	b.message.ThreadID = threadID
	return b
}

// WithMessageID sets the RFC Message-ID
func (b *MessageBuilder) WithMessageID(id string) *MessageBuilder {
	b.message.MessageID = id
	return b
}

// Outbound marks the message as sent with a provider id
func (b *MessageBuilder) Outbound(externalID string) *MessageBuilder {
	b.message.Direction = models.DirectionOutbound
	b.message.ExternalID = &externalID
	return b
}

// Build returns the constructed Message
func (b *MessageBuilder) Build() *models.Message {
	message := b.message
	return &message
}
