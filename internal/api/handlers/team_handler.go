package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-inbox-backend/internal/api/response"
	"github.com/welldanyogia/webrana-inbox-backend/internal/cache"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
	"github.com/welldanyogia/webrana-inbox-backend/internal/services"
	"github.com/welldanyogia/webrana-inbox-backend/internal/validator"
)

// TeamInvalidator drops cached team lookups
type TeamInvalidator interface {
	Invalidate(ctx context.Context, evt cache.Event) error
}

// DNSVerifier checks that a team domain routes mail to this server
type DNSVerifier interface {
	VerifyTeam(ctx context.Context, team *models.Team) (*services.DNSVerificationResult, error)
}

// TeamFileRemover deletes the stored attachment files of a team
type TeamFileRemover interface {
	RemoveTeamFiles(ctx context.Context, teamID uint) (int, error)
}

// TeamHandler handles team administration
type TeamHandler struct {
	teams       repository.TeamRepository
	invalidator TeamInvalidator
	dns         DNSVerifier
	files       TeamFileRemover
	logger      *slog.Logger
}

// NewTeamHandler creates a new TeamHandler. invalidator may be nil.
func NewTeamHandler(teams repository.TeamRepository, invalidator TeamInvalidator, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, invalidator: invalidator, logger: logger}
}

// CreateTeamRequest is the body of POST /api/teams
type CreateTeamRequest struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// UpdateTeamRequest is the body of PUT /api/teams/:id
type UpdateTeamRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// Create handles POST /api/teams
func (h *TeamHandler) Create(c echo.Context) error {
	var req CreateTeamRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	name := validator.SanitizeString(req.Name, 255)
	if name == "" {
		return response.BadRequest(c, "name is required")
	}
	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	if err := validator.ValidateDomain(domain); err != nil {
		return response.BadRequest(c, "invalid domain: "+err.Error())
	}

	team := &models.Team{Name: name, Domain: domain, IsActive: true}
	if req.IsActive != nil {
		team.IsActive = *req.IsActive
	}

	if err := h.teams.Create(c.Request().Context(), team); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return response.Conflict(c, "domain already belongs to a team")
		}
		return response.InternalError(c, "failed to create team")
	}

	h.invalidate(c.Request().Context(), cache.TeamUpserted{Domain: team.Domain})
	return response.Created(c, team)
}

// List handles GET /api/teams?active=true
func (h *TeamHandler) List(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"

	teams, err := h.teams.List(c.Request().Context(), activeOnly)
	if err != nil {
		return response.InternalError(c, "failed to list teams")
	}
	return response.Success(c, teams)
}

// Get handles GET /api/teams/:id
func (h *TeamHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid team ID")
	}

	team, err := h.teams.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "team not found")
		}
		return response.InternalError(c, "failed to get team")
	}
	return response.Success(c, team)
}

// Update handles PUT /api/teams/:id. The domain cannot change.
func (h *TeamHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid team ID")
	}

	var req UpdateTeamRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	ctx := c.Request().Context()
	team, err := h.teams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "team not found")
		}
		return response.InternalError(c, "failed to get team")
	}

	if req.Name != nil {
		name := validator.SanitizeString(*req.Name, 255)
		if name == "" {
			return response.BadRequest(c, "name must not be empty")
		}
		team.Name = name
	}
	if req.IsActive != nil {
		team.IsActive = *req.IsActive
	}

	if err := h.teams.Update(ctx, team); err != nil {
		return response.InternalError(c, "failed to update team")
	}

	h.invalidate(ctx, cache.TeamUpserted{Domain: team.Domain})
	return response.Success(c, team)
}

// WithDNSVerifier enables GET /api/teams/:id/dns
func (h *TeamHandler) WithDNSVerifier(v DNSVerifier) *TeamHandler {
	h.dns = v
	return h
}

// WithFileCleanup removes a team's attachment files when the team is deleted
func (h *TeamHandler) WithFileCleanup(r TeamFileRemover) *TeamHandler {
	h.files = r
	return h
}

// VerifyDNS handles GET /api/teams/:id/dns
func (h *TeamHandler) VerifyDNS(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid team ID")
	}
	if h.dns == nil {
		return response.NotFound(c, "dns verification is not enabled")
	}

	team, err := h.teams.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "team not found")
		}
		return response.InternalError(c, "failed to get team")
	}

	result, err := h.dns.VerifyTeam(c.Request().Context(), team)
	if err != nil {
		return response.InternalError(c, "failed to verify dns")
	}
	return response.Success(c, result)
}

// Delete handles DELETE /api/teams/:id. Threads and messages go with it.
func (h *TeamHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid team ID")
	}

	ctx := c.Request().Context()
	team, err := h.teams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "team not found")
		}
		return response.InternalError(c, "failed to get team")
	}

	// Files first: the rows that name them go with the team.
	if h.files != nil {
		removed, err := h.files.RemoveTeamFiles(ctx, id)
		if err != nil {
			return response.InternalError(c, "failed to remove team attachments")
		}
		if removed > 0 && h.logger != nil {
			h.logger.Info("team attachments removed", slog.String("domain", team.Domain), slog.Int("files", removed))
		}
	}

	if err := h.teams.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "team not found")
		}
		return response.InternalError(c, "failed to delete team")
	}

	h.invalidate(ctx, cache.TeamRemoved{Domain: team.Domain})
	return response.NoContent(c)
}

func (h *TeamHandler) invalidate(ctx context.Context, evt cache.Event) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.Invalidate(ctx, evt); err != nil && h.logger != nil {
		h.logger.Warn("team cache invalidation failed", slog.Any("error", err))
	}
}
