// Package services holds operational checks that sit beside ingestion.
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
)

// DNSVerificationResult reports whether a team domain delivers to this server
type DNSVerificationResult struct {
	Domain       string   `json:"domain"`
	ExpectedHost string   `json:"expected_host"`
	MXHosts      []string `json:"mx_hosts"`
	MXVerified   bool     `json:"mx_verified"`
	HostResolves bool     `json:"host_resolves"`
	Ready        bool     `json:"ready"`
	Errors       []string `json:"errors,omitempty"`
}

// DNSVerifierConfig holds configuration for the DNS verifier
type DNSVerifierConfig struct {
	// SMTPHostname is the host the team's MX records must point at
	SMTPHostname  string
	MaxRetries    int
	RetryDelay    time.Duration
	LookupTimeout time.Duration
}

// DefaultDNSVerifierConfig returns default configuration for the DNS verifier
func DefaultDNSVerifierConfig(smtpHostname string) DNSVerifierConfig {
	return DNSVerifierConfig{
		SMTPHostname:  smtpHostname,
		MaxRetries:    2,
		RetryDelay:    2 * time.Second,
		LookupTimeout: 5 * time.Second,
	}
}

// DNSResolver interface for DNS lookups (allows mocking in tests)
type DNSResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

func newDefaultDNSResolver(timeout time.Duration) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, network, address)
		},
	}
}

// DNSVerifier checks that a team's receiving domain routes mail here
type DNSVerifier struct {
	config   DNSVerifierConfig
	resolver DNSResolver
}

// NewDNSVerifier creates a DNSVerifier using the system resolver
func NewDNSVerifier(config DNSVerifierConfig) *DNSVerifier {
	return NewDNSVerifierWithResolver(config, newDefaultDNSResolver(config.LookupTimeout))
}

// NewDNSVerifierWithResolver creates a DNSVerifier with a custom resolver (for testing)
func NewDNSVerifierWithResolver(config DNSVerifierConfig, resolver DNSResolver) *DNSVerifier {
	return &DNSVerifier{config: config, resolver: resolver}
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

// VerifyTeam checks the MX records of the team's domain. Lookup failures
// are reported in the result, not returned.
func (v *DNSVerifier) VerifyTeam(ctx context.Context, team *models.Team) (*DNSVerificationResult, error) {
	if team == nil {
		return nil, fmt.Errorf("team cannot be nil")
	}

	result := &DNSVerificationResult{
		Domain:       team.Domain,
		ExpectedHost: normalizeHost(v.config.SMTPHostname),
		MXHosts:      []string{},
	}

	hosts, err := v.withRetry(ctx, func(ctx context.Context) ([]string, error) {
		return v.mxHosts(ctx, team.Domain)
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("MX verification failed: %v", err))
	} else {
		result.MXHosts = hosts
		result.MXVerified = VerifyMXHosts(hosts, result.ExpectedHost)
		if !result.MXVerified {
			result.Errors = append(result.Errors, fmt.Sprintf("MX record mismatch: expected %s", result.ExpectedHost))
		}
	}

	if _, err := v.withRetry(ctx, func(ctx context.Context) ([]string, error) {
		return v.resolver.LookupHost(ctx, result.ExpectedHost)
	}); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("host lookup failed: %v", err))
	} else {
		result.HostResolves = true
	}

	result.Ready = result.MXVerified && result.HostResolves
	return result, nil
}

// VerifyMXHosts reports whether any MX host matches expected
func VerifyMXHosts(hosts []string, expected string) bool {
	expected = normalizeHost(expected)
	if expected == "" {
		return false
	}
	for _, h := range hosts {
		if normalizeHost(h) == expected {
			return true
		}
	}
	return false
}

func (v *DNSVerifier) mxHosts(ctx context.Context, domain string) ([]string, error) {
	if domain == "" {
		return nil, backoff.Permanent(fmt.Errorf("domain name cannot be empty"))
	}
	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, backoff.Permanent(fmt.Errorf("MX lookup failed for %s: %w", domain, err))
		}
		return nil, fmt.Errorf("MX lookup failed for %s: %w", domain, err)
	}
	if len(records) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("no MX records found for %s", domain))
	}

	hosts := make([]string, 0, len(records))
	for _, mx := range records {
		hosts = append(hosts, normalizeHost(mx.Host))
	}
	return hosts, nil
}

// withRetry retries transient lookup failures at a constant interval
func (v *DNSVerifier) withRetry(ctx context.Context, lookup func(context.Context) ([]string, error)) ([]string, error) {
	var b backoff.BackOff = backoff.NewConstantBackOff(v.config.RetryDelay)
	if v.config.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(v.config.MaxRetries))
	} else {
		b = &backoff.StopBackOff{}
	}
	return backoff.RetryWithData(func() ([]string, error) {
		return lookup(ctx)
	}, backoff.WithContext(b, ctx))
}
