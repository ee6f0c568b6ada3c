package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchConfig bounds batch ingestion
type BatchConfig struct {
	MaxConcurrent    int
	MaxConcurrentCap int
	// Pause is waited between chunks
	Pause time.Duration
}

// DefaultBatchConfig processes 5 emails at a time, at most 50, pausing 100ms
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{MaxConcurrent: 5, MaxConcurrentCap: 50, Pause: 100 * time.Millisecond}
}

func (c BatchConfig) withDefaults() BatchConfig {
	d := DefaultBatchConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.MaxConcurrentCap <= 0 {
		c.MaxConcurrentCap = d.MaxConcurrentCap
	}
	if c.Pause < 0 {
		c.Pause = 0
	}
	return c
}

// BatchRequest is a list of inbound payloads
type BatchRequest struct {
	Emails        []*InboundPayload `json:"emails"`
	MaxConcurrent int               `json:"maxConcurrent,omitempty"`
}

// BatchSummary counts outcomes. SuccessRate is a percentage.
type BatchSummary struct {
	TotalEmails int     `json:"totalEmails"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"successRate"`
}

// BatchItem is the outcome of one email in a batch
type BatchItem struct {
	Index          int    `json:"index"`
	EmailMessageID string `json:"message_id,omitempty"`
	*Result
	Error string `json:"error,omitempty"`
}

// BatchError details one failed email
type BatchError struct {
	Index          int    `json:"index"`
	EmailMessageID string `json:"message_id,omitempty"`
	Error          string `json:"error"`
}

// BatchResult reports every email of a batch
type BatchResult struct {
	Summary BatchSummary `json:"summary"`
	Results []BatchItem  `json:"results"`
	Errors  []BatchError `json:"errors"`
}

func (i BatchItem) succeeded() bool {
	return i.Error == "" && i.Result != nil && i.Result.Success
}

// IngestBatch ingests emails in chunks of MaxConcurrent, one chunk at a
// time with a pause in between. A failing email never stops the batch.
func (s *Service) IngestBatch(ctx context.Context, req BatchRequest) *BatchResult {
	limit := req.MaxConcurrent
	if limit <= 0 {
		limit = s.batch.MaxConcurrent
	}
	limit = min(limit, s.batch.MaxConcurrentCap)

	items := make([]BatchItem, len(req.Emails))
	for start := 0; start < len(req.Emails); start += limit {
		end := min(start+limit, len(req.Emails))

		if start > 0 && s.batch.Pause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.batch.Pause):
			}
		}
		if err := ctx.Err(); err != nil {
			for i := start; i < len(req.Emails); i++ {
				items[i] = BatchItem{Index: i, EmailMessageID: payloadMessageID(req.Emails[i]), Error: err.Error()}
			}
			break
		}

		var g errgroup.Group
		g.SetLimit(limit)
		for i := start; i < end; i++ {
			g.Go(func() error {
				items[i] = s.ingestItem(ctx, i, req.Emails[i])
				return nil
			})
		}
		g.Wait()
	}

	result := &BatchResult{Results: items, Errors: []BatchError{}}
	for _, item := range items {
		if item.succeeded() {
			result.Summary.Successful++
			continue
		}
		result.Summary.Failed++
		msg := item.Error
		if msg == "" && item.Result != nil {
			msg = item.Result.Reason
		}
		result.Errors = append(result.Errors, BatchError{Index: item.Index, EmailMessageID: item.EmailMessageID, Error: msg})
	}
	result.Summary.TotalEmails = len(items)
	if len(items) > 0 {
		rate := float64(result.Summary.Successful) * 100 / float64(len(items))
		result.Summary.SuccessRate = math.Round(rate*100) / 100
	}

	if s.logger != nil {
		s.logger.Info("batch ingestion finished",
			slog.Int("total", result.Summary.TotalEmails),
			slog.Int("successful", result.Summary.Successful),
			slog.Int("failed", result.Summary.Failed),
			slog.Int("concurrency", limit))
	}
	return result
}

// ingestItem isolates one email: errors and panics become a failed item
func (s *Service) ingestItem(ctx context.Context, index int, payload *InboundPayload) (item BatchItem) {
	item = BatchItem{Index: index, EmailMessageID: payloadMessageID(payload)}
	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Error("batch item panicked",
					slog.Int("index", index),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			item.Result = nil
			item.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	res, err := s.Ingest(ctx, payload)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Result = res
	return item
}

func payloadMessageID(p *InboundPayload) string {
	if p == nil {
		return ""
	}
	return p.MessageID
}
