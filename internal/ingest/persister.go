package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
	"github.com/welldanyogia/webrana-inbox-backend/internal/storage"
)

// MessageStore writes threads and messages atomically
type MessageStore interface {
	CreateWithThread(ctx context.Context, thread *models.Thread, message *models.Message, attachments []models.Attachment) error
	AppendToThread(ctx context.Context, threadID uint, message *models.Message, attachments []models.Attachment, participants []models.Participant) error
}

// PersistResult describes what was written
type PersistResult struct {
	ThreadID    uint
	MessageID   uint
	IsNewThread bool
	Message     *models.Message
}

// MessagePersister stores a resolved email as one unit
type MessagePersister struct {
	store  MessageStore
	files  storage.FileStorage
	now    func() time.Time
	logger *slog.Logger
}

// NewMessagePersister creates a MessagePersister. files may be nil, in
// which case attachments are not kept.
func NewMessagePersister(store MessageStore, files storage.FileStorage, logger *slog.Logger) *MessagePersister {
	return &MessagePersister{
		store:  store,
		files:  files,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Persist writes the message and, for a new conversation, its thread. A
// Message-ID already stored for the team yields *errors.DuplicateError and
// nothing is written.
func (p *MessagePersister) Persist(ctx context.Context, teamID uint, res *Resolution, email *ParsedEmail) (*PersistResult, error) {
	message := buildMessage(teamID, email, p.now())

	attachments, err := p.saveAttachments(teamID, email.Attachments)
	if err != nil {
		return nil, err
	}

	if res.IsNew() {
		err = p.store.CreateWithThread(ctx, res.Draft, message, attachments)
	} else {
		err = p.store.AppendToThread(ctx, res.ThreadID, message, attachments, email.Participants())
	}
	if err != nil {
		p.removeFiles(attachments)
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, &apperrors.DuplicateError{TeamID: teamID, RFCID: email.MessageID}
		}
		return nil, fmt.Errorf("failed to persist message %s: %w", email.MessageID, err)
	}

	return &PersistResult{
		ThreadID:    message.ThreadID,
		MessageID:   message.ID,
		IsNewThread: res.IsNew(),
		Message:     message,
	}, nil
}

func buildMessage(teamID uint, email *ParsedEmail, now time.Time) *models.Message {
	return &models.Message{
		TeamID:      teamID,
		MessageID:   email.MessageID,
		InReplyTo:   email.InReplyTo,
		References:  append([]string{}, email.References...),
		FromAddress: email.From.Address,
		FromName:    email.From.Name,
		To:          email.To,
		Cc:          email.Cc,
		Bcc:         email.Bcc,
		Subject:     email.Subject,
		TextContent: email.TextContent,
		HTMLContent: email.HTMLContent,
		Headers:     email.Headers,
		Direction:   models.DirectionInbound,
		SentAt:      email.Date,
		CreatedAt:   now,
	}
}

// saveAttachments writes files before the transaction so no row ever
// points at a missing file. Blocked or oversized files are skipped.
func (p *MessagePersister) saveAttachments(teamID uint, attachments []Attachment) ([]models.Attachment, error) {
	if p.files == nil || len(attachments) == 0 {
		return nil, nil
	}

	saved := make([]models.Attachment, 0, len(attachments))
	for _, att := range attachments {
		size := int64(len(att.Content))
		if err := storage.ValidateFile(att.Filename, size); err != nil {
			if p.logger != nil {
				p.logger.Warn("attachment skipped",
					slog.String("filename", att.Filename),
					slog.Int64("size", size),
					slog.Any("error", err))
			}
			continue
		}
		path, err := p.files.Save(teamID, att.Filename, bytes.NewReader(att.Content))
		if err != nil {
			p.removeFiles(saved)
			return nil, fmt.Errorf("failed to store attachment %s: %w", att.Filename, err)
		}
		sum := sha256.Sum256(att.Content)
		saved = append(saved, models.Attachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			FilePath:    path,
			SizeBytes:   size,
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}
	return saved, nil
}

func (p *MessagePersister) removeFiles(attachments []models.Attachment) {
	if p.files == nil {
		return
	}
	for _, att := range attachments {
		if err := p.files.Delete(att.FilePath); err != nil && p.logger != nil {
			p.logger.Warn("failed to remove orphaned attachment", slog.String("path", att.FilePath), slog.Any("error", err))
		}
	}
}
