package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-inbox-backend/internal/validator"
)

// pathID parses a positive numeric path parameter
func pathID(c echo.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// pagination reads limit and offset, clamped to the allowed range
func pagination(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return validator.ValidatePagination(limit, offset)
}
