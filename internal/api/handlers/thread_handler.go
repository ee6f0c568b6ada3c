package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-inbox-backend/internal/api/response"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
)

// ThreadHandler handles thread-related HTTP requests
type ThreadHandler struct {
	threads repository.ThreadRepository
	teams   repository.TeamRepository
}

// NewThreadHandler creates a new ThreadHandler
func NewThreadHandler(threads repository.ThreadRepository, teams repository.TeamRepository) *ThreadHandler {
	return &ThreadHandler{threads: threads, teams: teams}
}

// UpdateStatusRequest is the body of PATCH /api/threads/:id/status
type UpdateStatusRequest struct {
	Status models.ThreadStatus `json:"status"`
}

// List handles GET /api/teams/:team_id/threads, newest activity first
func (h *ThreadHandler) List(c echo.Context) error {
	teamID, ok := pathID(c, "team_id")
	if !ok {
		return response.BadRequest(c, "invalid team ID")
	}

	status := models.ThreadStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return response.BadRequest(c, "invalid status filter")
	}

	ctx := c.Request().Context()
	if _, err := h.teams.GetByID(ctx, teamID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "team not found")
		}
		return response.InternalError(c, "failed to get team")
	}

	limit, offset := pagination(c)
	threads, total, err := h.threads.ListByTeam(ctx, teamID, status, limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list threads")
	}

	return response.Paginated(c, threads, total, limit, offset)
}

// Get handles GET /api/threads/:id with its messages in order
func (h *ThreadHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid thread ID")
	}

	thread, err := h.threads.GetWithMessages(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "thread not found")
		}
		return response.InternalError(c, "failed to get thread")
	}

	return response.Success(c, thread)
}

// UpdateStatus handles PATCH /api/threads/:id/status
func (h *ThreadHandler) UpdateStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid thread ID")
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if !req.Status.Valid() {
		return response.BadRequest(c, "invalid status")
	}

	if err := h.threads.UpdateStatus(c.Request().Context(), id, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "thread not found")
		}
		return response.InternalError(c, "failed to update thread status")
	}

	return response.SuccessWithMessage(c, nil, "thread status updated")
}
