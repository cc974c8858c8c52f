package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/orchestration"
)

// mapJobError maps an orchestration job-runner error to an HTTP error
// response. Every job runner's own error already carries enough context
// (company id, stage) via %w wrapping; this only picks the status code.
func mapJobError(err error) *echo.HTTPError {
	if errors.Is(err, orchestration.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "prior stage artifact not found")
	}

	slog.Error("job runner failed", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
