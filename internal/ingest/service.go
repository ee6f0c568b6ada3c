package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/welldanyogia/webrana-inbox-backend/internal/classifier"
	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/logger"
	"github.com/welldanyogia/webrana-inbox-backend/internal/metrics"
	"github.com/welldanyogia/webrana-inbox-backend/internal/storage"
	"github.com/welldanyogia/webrana-inbox-backend/internal/websocket"
)

// DuplicatePolicy decides what a redelivered Message-ID returns
type DuplicatePolicy string

const (
	// DuplicateIdempotent reports the stored message as a skipped success
	DuplicateIdempotent DuplicatePolicy = "idempotent"
	// DuplicateReject returns *errors.DuplicateError
	DuplicateReject DuplicatePolicy = "reject"
)

// ReasonDuplicate is reported for an idempotent redelivery
const ReasonDuplicate = "duplicate"

// ParseDuplicatePolicy accepts "idempotent" or "reject"; empty means idempotent
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DuplicateIdempotent:
		return DuplicateIdempotent, nil
	case DuplicateReject:
		return DuplicateReject, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// Store is the persistence the pipeline needs
type Store interface {
	MessageStore
	MessageFinder
}

// JobDispatcher queues background classification
type JobDispatcher interface {
	Dispatch(job classifier.Job) bool
}

// Notifier publishes ingestion events to live clients
type Notifier interface {
	BroadcastNewMessage(teamID uint, payload *websocket.NewMessagePayload)
}

// Result is the outcome reported to the ingestion caller
type Result struct {
	Success     bool   `json:"success"`
	ThreadID    uint   `json:"threadId,omitempty"`
	MessageID   uint   `json:"messageId,omitempty"`
	IsNewThread *bool  `json:"isNewThread,omitempty"`
	Skipped     bool   `json:"skipped,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Service runs the ingestion pipeline: parse, filter, route, resolve,
// persist, then notify and dispatch classification without waiting.
type Service struct {
	parser    *Parser
	filters   []Filter
	router    *TenantRouter
	resolver  *ThreadResolver
	persister *MessagePersister
	messages  MessageFinder

	dispatcher JobDispatcher
	notifier   Notifier
	policy     DuplicatePolicy
	batch      BatchConfig
	files      storage.FileStorage

	logger  *slog.Logger
	events  *logger.EventLogger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEventLogger sets the ingestion event logger
func WithEventLogger(e *logger.EventLogger) Option {
	return func(s *Service) { s.events = e }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDispatcher enables background classification
func WithDispatcher(d JobDispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithNotifier enables live new_message events
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithFilters replaces the default filter chain
func WithFilters(filters ...Filter) Option {
	return func(s *Service) { s.filters = filters }
}

// WithDuplicatePolicy sets the redelivery policy
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithFileStorage keeps attachments in files
func WithFileStorage(fs storage.FileStorage) Option {
	return func(s *Service) { s.files = fs }
}

// WithClock overrides the message timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBatchConfig sets batch concurrency and pacing
func WithBatchConfig(c BatchConfig) Option {
	return func(s *Service) { s.batch = c }
}

// NewService wires the pipeline. teams is usually the team cache.
func NewService(teams TeamLookup, store Store, opts ...Option) *Service {
	s := &Service{
		parser:   NewParser(),
		filters:  []Filter{NewAutoReplyFilter()},
		router:   NewTenantRouter(teams),
		resolver: NewThreadResolver(store),
		messages: store,
		policy:   DuplicateIdempotent,
		batch:    DefaultBatchConfig(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = logger.NewEventLogger(s.logger)
	}
	s.persister = NewMessagePersister(store, s.files, s.logger)
	s.persister.now = s.now
	s.batch = s.batch.withDefaults()
	return s
}

// Ingest processes one inbound notification. Parse failures and storage
// failures are returned as errors; routing failures and skips are reported
// in the Result. A duplicate is reported per the duplicate policy.
func (s *Service) Ingest(ctx context.Context, payload *InboundPayload) (*Result, error) {
	start := time.Now()

	email, err := s.parser.Parse(payload)
	if err != nil {
		s.events.ParseFailure(payload, err)
		s.metrics.ObserveIngest(metrics.OutcomeInvalid, time.Since(start))
		return nil, err
	}

	for _, f := range s.filters {
		if skip, reason := f.Skip(email); skip {
			s.events.Skipped(f.ID(), email.MessageID, email.From.Address)
			s.metrics.ObserveIngest(metrics.OutcomeAutoReply, time.Since(start))
			return &Result{Success: true, Skipped: true, Reason: reason}, nil
		}
	}

	team, err := s.router.Route(ctx, email)
	if err != nil {
		var routingErr *apperrors.RoutingError
		if errors.As(err, &routingErr) {
			s.events.RoutingFailure(routingErr.Domain, email.MessageID)
			s.metrics.ObserveIngest(metrics.OutcomeUnrouted, time.Since(start))
			return &Result{Success: false, Reason: routingErr.Error()}, nil
		}
		s.metrics.ObserveIngest(metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	resolution, err := s.resolver.Resolve(ctx, team.ID, email)
	if err != nil {
		s.metrics.ObserveIngest(metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	persisted, err := s.persister.Persist(ctx, team.ID, resolution, email)
	if err != nil {
		var dupErr *apperrors.DuplicateError
		if errors.As(err, &dupErr) {
			s.metrics.ObserveIngest(metrics.OutcomeDuplicate, time.Since(start))
			return s.duplicate(ctx, dupErr)
		}
		s.metrics.ObserveIngest(metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	outcome := metrics.OutcomeAppended
	if persisted.IsNewThread {
		outcome = metrics.OutcomeCreated
	}
	s.metrics.ObserveIngest(outcome, time.Since(start))
	if s.logger != nil {
		s.logger.Info("email ingested",
			slog.Uint64("team_id", uint64(team.ID)),
			slog.Uint64("thread_id", uint64(persisted.ThreadID)),
			slog.Uint64("message_id", uint64(persisted.MessageID)),
			slog.Bool("new_thread", persisted.IsNewThread),
			slog.String("matched_by", resolution.MatchedBy))
	}

	s.afterPersist(team.ID, persisted)

	isNew := persisted.IsNewThread
	return &Result{
		Success:     true,
		ThreadID:    persisted.ThreadID,
		MessageID:   persisted.MessageID,
		IsNewThread: &isNew,
	}, nil
}

// afterPersist fans out to live clients and the classifier. Neither can
// affect the stored message.
func (s *Service) afterPersist(teamID uint, persisted *PersistResult) {
	msg := persisted.Message
	if s.notifier != nil {
		s.notifier.BroadcastNewMessage(teamID, &websocket.NewMessagePayload{
			ThreadID:    persisted.ThreadID,
			MessageID:   persisted.MessageID,
			IsNewThread: persisted.IsNewThread,
			SenderEmail: msg.FromAddress,
			SenderName:  msg.FromName,
			Subject:     msg.Subject,
			ReceivedAt:  msg.CreatedAt.Format(time.RFC3339),
		})
	}
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(classifier.Job{
			TeamID:    teamID,
			ThreadID:  persisted.ThreadID,
			MessageID: persisted.MessageID,
			Content:   msg.ClassificationInput(),
		})
	}
}

func (s *Service) duplicate(ctx context.Context, dupErr *apperrors.DuplicateError) (*Result, error) {
	s.events.DuplicateDelivery(dupErr.TeamID, dupErr.RFCID, string(s.policy))

	existing, err := s.messages.FindByMessageID(ctx, dupErr.TeamID, dupErr.RFCID)
	if err == nil {
		dupErr.ThreadID = existing.ThreadID
		dupErr.MessageID = existing.ID
	} else if s.logger != nil {
		s.logger.Warn("duplicate message not found on lookup",
			slog.String("message_id", dupErr.RFCID),
			slog.Any("error", err))
	}

	if s.policy == DuplicateReject {
		return nil, dupErr
	}
	return &Result{
		Success:   true,
		Skipped:   true,
		Reason:    ReasonDuplicate,
		ThreadID:  dupErr.ThreadID,
		MessageID: dupErr.MessageID,
	}, nil
}
