package ingest

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
)

// TeamLookup finds the team owning a receiving domain.
// Implementations return repository.ErrNotFound for unknown domains.
type TeamLookup interface {
	GetByDomain(ctx context.Context, domain string) (*models.Team, error)
}

// TenantRouter maps an email to its owning team by recipient domain
type TenantRouter struct {
	teams TeamLookup
}

// NewTenantRouter creates a TenantRouter
func NewTenantRouter(teams TeamLookup) *TenantRouter {
	return &TenantRouter{teams: teams}
}

// Route returns the team for the email's routing address. Unknown and
// inactive domains yield *errors.RoutingError.
func (r *TenantRouter) Route(ctx context.Context, email *ParsedEmail) (*models.Team, error) {
	addr, ok := email.RoutingAddress()
	if !ok {
		return nil, apperrors.NewParseError("to", "no valid recipient address")
	}
	domain := addr.Domain()
	if domain == "" {
		return nil, &apperrors.RoutingError{Domain: addr.Address}
	}

	team, err := r.teams.GetByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &apperrors.RoutingError{Domain: domain}
		}
		return nil, fmt.Errorf("failed to look up team for %s: %w", domain, err)
	}
	if !team.IsActive {
		return nil, &apperrors.RoutingError{Domain: domain}
	}
	return team, nil
}
