package ingest

import (
	"context"
	"fmt"
)

func (s *ServiceTestSuite) TestIngestBatch_ReportsEveryItem() {
	unrouted := inbound("<b3@acme.com>")
	unrouted.To = StringList{"x@unregistered.io"}
	emails := []*InboundPayload{
		inbound("<b1@acme.com>"),
		inbound("<b2@acme.com>"),
		unrouted,
		inbound(""),
		nil,
		inbound("<b1@acme.com>"),
	}

	out := s.svc.IngestBatch(context.Background(), BatchRequest{Emails: emails, MaxConcurrent: 2})

	s.Equal(6, out.Summary.TotalEmails)
	s.Equal(out.Summary.TotalEmails, out.Summary.Successful+out.Summary.Failed)
	s.Equal(3, out.Summary.Successful)
	s.Equal(3, out.Summary.Failed)
	s.Equal(50.0, out.Summary.SuccessRate)
	s.Len(out.Results, 6)
	s.Require().Len(out.Errors, 3)

	failed := map[int]string{}
	for _, e := range out.Errors {
		failed[e.Index] = e.Error
	}
	s.Contains(failed[2], "unregistered.io")
	s.Contains(failed[3], "message_id")
	s.Contains(failed[4], "payload")

	for i, item := range out.Results {
		s.Equal(i, item.Index)
	}
	s.Equal(int64(2), s.countMessages())
}

func (s *ServiceTestSuite) TestIngestBatch_LargeConcurrencyIsCapped() {
	emails := make([]*InboundPayload, 12)
	for i := range emails {
		emails[i] = inbound(fmt.Sprintf("<cap%d@acme.com>", i))
	}

	out := s.svc.IngestBatch(context.Background(), BatchRequest{Emails: emails, MaxConcurrent: 1000})

	s.Equal(12, out.Summary.Successful)
	s.Equal(100.0, out.Summary.SuccessRate)
	s.Empty(out.Errors)
}

func (s *ServiceTestSuite) TestIngestBatch_CancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := s.svc.IngestBatch(ctx, BatchRequest{Emails: []*InboundPayload{inbound("<c1@acme.com>"), inbound("<c2@acme.com>")}})

	s.Equal(2, out.Summary.Failed)
	s.Equal(0.0, out.Summary.SuccessRate)
	s.Contains(out.Errors[0].Error, "context canceled")
	s.Zero(s.countMessages())
}

func (s *ServiceTestSuite) TestIngestBatch_Empty() {
	out := s.svc.IngestBatch(context.Background(), BatchRequest{})

	s.Equal(0, out.Summary.TotalEmails)
	s.Equal(0.0, out.Summary.SuccessRate)
	s.NotNil(out.Errors)
}
