package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/welldanyogia/webrana-inbox-backend/internal/app"
	"github.com/welldanyogia/webrana-inbox-backend/internal/ingest"
)

var (
	replayFileFlag        string
	replayConcurrencyFlag int
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Ingest inbound payloads from a JSON file",
	Long: `Replay runs stored inbound webhook bodies through the ingestion pipeline.

The file holds a JSON array of payloads, or an object with an "emails" array
as accepted by POST /api/inbound/batch. Duplicates are reported, not stored
twice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payloads, err := readPayloadFile(replayFileFlag)
		if err != nil {
			return err
		}
		return withComponents(cmd.Context(), func(c *app.Components) error {
			service, err := c.IngestService()
			if err != nil {
				return err
			}
			return replay(cmd.Context(), service, payloads, replayConcurrencyFlag, cmd.OutOrStdout())
		})
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFileFlag, "file", "", "JSON file with inbound payloads (required)")
	replayCmd.Flags().IntVar(&replayConcurrencyFlag, "concurrency", 0, "Emails ingested in parallel (default from BATCH_MAX_CONCURRENT)")
	replayCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(replayCmd)
}

type batchIngester interface {
	IngestBatch(ctx context.Context, req ingest.BatchRequest) *ingest.BatchResult
}

func readPayloadFile(path string) ([]*ingest.InboundPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return decodePayloads(data)
}

func decodePayloads(data []byte) ([]*ingest.InboundPayload, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var req ingest.BatchRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("invalid batch file: %w", err)
		}
		return req.Emails, nil
	}

	var payloads []*ingest.InboundPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("invalid payload file: %w", err)
	}
	return payloads, nil
}

func replay(ctx context.Context, ingester batchIngester, payloads []*ingest.InboundPayload, concurrency int, out io.Writer) error {
	if concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}

	result := ingester.IngestBatch(ctx, ingest.BatchRequest{Emails: payloads, MaxConcurrent: concurrency})

	for _, e := range result.Errors {
		fmt.Fprintf(out, "#%d %s: %s\n", e.Index, e.EmailMessageID, e.Error)
	}
	s := result.Summary
	fmt.Fprintf(out, "replayed %d emails: %d succeeded, %d failed (%.1f%%)\n",
		s.TotalEmails, s.Successful, s.Failed, s.SuccessRate)

	if s.Failed > 0 {
		return fmt.Errorf("%d of %d emails failed", s.Failed, s.TotalEmails)
	}
	return nil
}
