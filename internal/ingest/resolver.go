package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
)

// MessageFinder looks up stored messages by Message-ID within one team
type MessageFinder interface {
	FindByMessageID(ctx context.Context, teamID uint, messageID string) (*models.Message, error)
}

// How a thread was resolved
const (
	MatchedInReplyTo  = "in-reply-to"
	MatchedReferences = "references"
	MatchedNone       = "new"
)

// Resolution is the outcome of thread resolution. Exactly one of
// ThreadID (existing conversation) or Draft (new conversation) is set.
type Resolution struct {
	ThreadID  uint
	Draft     *models.Thread
	MatchedBy string
	MatchedID string
}

// IsNew reports whether the email starts a new conversation
func (r *Resolution) IsNew() bool {
	return r.Draft != nil
}

// ThreadResolver decides which conversation an email belongs to
type ThreadResolver struct {
	messages MessageFinder
}

// NewThreadResolver creates a ThreadResolver
func NewThreadResolver(messages MessageFinder) *ThreadResolver {
	return &ThreadResolver{messages: messages}
}

// Resolve checks In-Reply-To first, then each References entry in order;
// the first stored match wins. With no match a new thread draft is built.
// Lookups never leave teamID.
func (r *ThreadResolver) Resolve(ctx context.Context, teamID uint, email *ParsedEmail) (*Resolution, error) {
	seen := make(map[string]struct{})
	for i, candidate := range email.ThreadCandidates() {
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}

		threadID, found, err := r.lookup(ctx, teamID, candidate)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		matchedBy := MatchedReferences
		if i == 0 && email.InReplyTo != "" {
			matchedBy = MatchedInReplyTo
		}
		return &Resolution{ThreadID: threadID, MatchedBy: matchedBy, MatchedID: candidate}, nil
	}

	return &Resolution{Draft: newThreadDraft(teamID, email), MatchedBy: MatchedNone}, nil
}

func (r *ThreadResolver) lookup(ctx context.Context, teamID uint, messageID string) (uint, bool, error) {
	msg, err := r.messages.FindByMessageID(ctx, teamID, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to look up %s: %w", messageID, err)
	}
	return msg.ThreadID, true, nil
}

func newThreadDraft(teamID uint, email *ParsedEmail) *models.Thread {
	return &models.Thread{
		TeamID:       teamID,
		Subject:      email.Subject,
		MessageID:    email.MessageID,
		InReplyTo:    email.InReplyTo,
		References:   append([]string{}, email.References...),
		Participants: email.Participants(),
		Status:       models.ThreadStatusUnread,
		Priority:     models.PriorityNormal,
		Tags:         []string{},
	}
}
