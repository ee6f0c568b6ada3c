package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-inbox-backend/internal/api/response"
	"github.com/welldanyogia/webrana-inbox-backend/internal/repository"
	"github.com/welldanyogia/webrana-inbox-backend/internal/storage"
	"github.com/welldanyogia/webrana-inbox-backend/internal/validator"
)

// AttachmentHandler handles attachment-related HTTP requests
type AttachmentHandler struct {
	attachmentRepo repository.AttachmentRepository
	messageRepo    repository.MessageRepository
	threadRepo     repository.ThreadRepository
	fileStorage    storage.FileStorage
}

// NewAttachmentHandler creates a new AttachmentHandler
func NewAttachmentHandler(
	attachmentRepo repository.AttachmentRepository,
	messageRepo repository.MessageRepository,
	fileStorage storage.FileStorage,
) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentRepo: attachmentRepo,
		messageRepo:    messageRepo,
		fileStorage:    fileStorage,
	}
}

// List handles GET /api/messages/:message_id/attachments
func (h *AttachmentHandler) List(c echo.Context) error {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return response.BadRequest(c, "invalid message ID")
	}

	if _, err := h.messageRepo.GetByID(c.Request().Context(), messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "message not found")
		}
		return response.InternalError(c, "failed to get message")
	}

	attachments, err := h.attachmentRepo.ListByMessage(c.Request().Context(), messageID)
	if err != nil {
		return response.InternalError(c, "failed to list attachments")
	}

	return response.Success(c, attachments)
}

// WithThreads enables GET /api/threads/:id/attachments
func (h *AttachmentHandler) WithThreads(threads repository.ThreadRepository) *AttachmentHandler {
	h.threadRepo = threads
	return h
}

// ListByThread handles GET /api/threads/:id/attachments
func (h *AttachmentHandler) ListByThread(c echo.Context) error {
	threadID, ok := pathID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid thread ID")
	}
	if h.threadRepo == nil {
		return response.NotFound(c, "thread not found")
	}

	ctx := c.Request().Context()
	if _, err := h.threadRepo.GetByID(ctx, threadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "thread not found")
		}
		return response.InternalError(c, "failed to get thread")
	}

	attachments, err := h.attachmentRepo.ListByThread(ctx, threadID)
	if err != nil {
		return response.InternalError(c, "failed to list attachments")
	}
	return response.Success(c, attachments)
}

// Download handles GET /api/attachments/:id/download. Images are served
// inline when ?inline=true is passed.
func (h *AttachmentHandler) Download(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return response.BadRequest(c, "invalid attachment ID")
	}

	attachment, err := h.attachmentRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "attachment not found")
		}
		return response.InternalError(c, "failed to get attachment")
	}

	file, err := h.fileStorage.Get(attachment.FilePath)
	if err != nil {
		return response.NotFound(c, "attachment file not found")
	}
	defer file.Close()

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := c.Response().Header()
	header.Set(echo.HeaderContentType, contentType)
	disposition := "attachment"
	if attachment.IsImage() && c.QueryParam("inline") == "true" {
		disposition = "inline"
	}
	header.Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`%s; filename="%s"`, disposition, strings.ReplaceAll(validator.SanitizeFilename(attachment.Filename), `"`, "'")))
	if attachment.Checksum != "" {
		header.Set("ETag", `"`+attachment.Checksum+`"`)
	}
	if attachment.SizeBytes > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(attachment.SizeBytes, 10))
	}

	c.Response().WriteHeader(http.StatusOK)
	_, err = io.Copy(c.Response().Writer, file)
	return err
}
