// Package response writes the JSON envelopes of the inbox API.
package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
)

// APIResponse is the success envelope
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse is the failure envelope. ThreadID and MessageID name the
// stored copy when a duplicate inbound email is rejected.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ThreadID  uint   `json:"threadId,omitempty"`
	MessageID uint   `json:"messageId,omitempty"`
}

// PaginatedResponse wraps one page of a list
type PaginatedResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    Meta        `json:"meta"`
}

// Meta describes the page
type Meta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Success returns 200 with data
func Success(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// SuccessWithMessage returns 200 with data and a human readable note
func SuccessWithMessage(c echo.Context, data interface{}, message string) error {
	return c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Message: message})
}

// Created returns 201 with the new resource
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// NoContent returns 204
func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// Paginated returns one page. A nil slice is written as [] so clients can
// always iterate data.
func Paginated[T any](c echo.Context, items []T, total int64, limit, offset int) error {
	if items == nil {
		items = []T{}
	}
	return c.JSON(http.StatusOK, PaginatedResponse{
		Success: true,
		Data:    items,
		Meta:    Meta{Total: total, Limit: limit, Offset: offset},
	})
}

// Error maps an application error onto its status and code. Duplicates
// carry the ids of the stored copy. Internal errors hide their cause.
func Error(c echo.Context, err error) error {
	var dup *apperrors.DuplicateError
	if errors.As(err, &dup) {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:     dup.Error(),
			Code:      apperrors.CodeDuplicateEntry,
			ThreadID:  dup.ThreadID,
			MessageID: dup.MessageID,
		})
	}

	code := apperrors.GetErrorCode(err)
	status := statusFor(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	return fail(c, status, code, message)
}

// BadRequest returns 400
func BadRequest(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, apperrors.CodeInvalidInput, message)
}

// NotFound returns 404
func NotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, apperrors.CodeNotFound, message)
}

// Conflict returns 409
func Conflict(c echo.Context, message string) error {
	return fail(c, http.StatusConflict, apperrors.CodeDuplicateEntry, message)
}

// InternalError returns 500
func InternalError(c echo.Context, message string) error {
	return fail(c, http.StatusInternalServerError, apperrors.CodeInternalError, message)
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{Error: message, Code: code})
}

var codeStatus = map[string]int{
	apperrors.CodeNotFound:            http.StatusNotFound,
	apperrors.CodeDuplicateEntry:      http.StatusConflict,
	apperrors.CodeInvalidInput:        http.StatusBadRequest,
	apperrors.CodeParseError:          http.StatusBadRequest,
	apperrors.CodeTeamNotActive:       http.StatusUnprocessableEntity,
	apperrors.CodeRoutingError:        http.StatusUnprocessableEntity,
	apperrors.CodeClassificationError: http.StatusBadGateway,
	apperrors.CodeUnauthorized:        http.StatusUnauthorized,
	apperrors.CodeForbidden:           http.StatusForbidden,
}

func statusFor(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
