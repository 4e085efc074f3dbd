package sse

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/taskforge/platform/pkg/apperr"
)

// mapBridgeError maps Store/apperr sentinels to HTTP errors, mirroring the
// teacher's mapServiceError in pkg/api/errors.go.
func mapBridgeError(err error) *echo.HTTPError {
	switch {
	case apperr.Is(err, apperr.NotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case apperr.Is(err, apperr.Validation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.Is(err, apperr.Conflict):
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
