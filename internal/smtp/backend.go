// Package smtp accepts inbound mail over SMTP and feeds it to the ingestion
// pipeline.
package smtp

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/welldanyogia/webrana-inbox-backend/internal/ingest"
)

// Security limits
const (
	DefaultMaxMessageSize = 25 * 1024 * 1024 // 25 MB
	DefaultMaxRecipients  = 100
	DefaultReadTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultMaxLineLength  = 2000
	DefaultIngestTimeout  = 30 * time.Second
)

// ErrServerClosed is returned by a server after Close or Shutdown
var ErrServerClosed = smtp.ErrServerClosed

// Ingester runs one inbound email through the pipeline
type Ingester interface {
	Ingest(ctx context.Context, payload *ingest.InboundPayload) (*ingest.Result, error)
}

// Backend implements the go-smtp Backend interface
type Backend struct {
	teams         ingest.TeamLookup
	ingester      Ingester
	ingestTimeout time.Duration
	logger        *slog.Logger
}

// BackendConfig holds configuration for the SMTP backend
type BackendConfig struct {
	Teams         ingest.TeamLookup
	Ingester      Ingester
	IngestTimeout time.Duration
	Logger        *slog.Logger
}

// NewBackend creates a new SMTP backend
func NewBackend(cfg *BackendConfig) *Backend {
	timeout := cfg.IngestTimeout
	if timeout <= 0 {
		timeout = DefaultIngestTimeout
	}
	return &Backend{
		teams:         cfg.Teams,
		ingester:      cfg.Ingester,
		ingestTimeout: timeout,
		logger:        cfg.Logger,
	}
}

// NewSession creates a new SMTP session
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remote := ""
	if c != nil && c.Conn() != nil {
		remote = c.Conn().RemoteAddr().String()
	}
	if b.logger != nil {
		b.logger.Info("new SMTP connection", slog.String("remote_addr", remote))
	}
	return NewSession(b, remote), nil
}

// ServerConfig holds security configuration for the SMTP server
type ServerConfig struct {
	Addr           string
	Domain         string
	MaxMessageSize int64
	MaxRecipients  int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowInsecure  bool
	TLSConfig      *tls.Config
}

// NewSecureServer creates a new SMTP server with security settings
func NewSecureServer(backend *Backend, cfg *ServerConfig) *smtp.Server {
	s := smtp.NewServer(backend)

	s.Addr = cfg.Addr
	s.Domain = cfg.Domain

	s.MaxMessageBytes = DefaultMaxMessageSize
	if cfg.MaxMessageSize > 0 {
		s.MaxMessageBytes = cfg.MaxMessageSize
	}

	s.MaxRecipients = DefaultMaxRecipients
	if cfg.MaxRecipients > 0 {
		s.MaxRecipients = cfg.MaxRecipients
	}

	s.ReadTimeout = DefaultReadTimeout
	if cfg.ReadTimeout > 0 {
		s.ReadTimeout = cfg.ReadTimeout
	}
	s.WriteTimeout = DefaultWriteTimeout
	if cfg.WriteTimeout > 0 {
		s.WriteTimeout = cfg.WriteTimeout
	}

	s.AllowInsecureAuth = cfg.AllowInsecure
	if cfg.TLSConfig != nil {
		s.TLSConfig = cfg.TLSConfig
	}

	// Set max line length to prevent buffer overflow attacks
	s.MaxLineLength = DefaultMaxLineLength

	return s
}
