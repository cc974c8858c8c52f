package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/orchestration"
)

// profileHandler handles POST /v2/montagem_perfil: stage 4 (Profile), the
// in-process variant that runs RunProfileJob synchronously rather than
// enqueuing it — the same job runner the profile worker pool calls via
// orchestration.ProfileExecutor, per SPEC_FULL.md §9's consolidation.
func (s *Server) profileHandler(c *echo.Context) error {
	var req CompanyIDRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CompanyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "companyId is required")
	}

	start := time.Now()
	chunks, err := s.repo.GetChunks(c.Request().Context(), req.CompanyID)
	if err != nil {
		return mapJobError(err)
	}

	if err := orchestration.RunProfileJob(c.Request().Context(), s.repo, s.extractor, req.CompanyID, chunks); err != nil {
		return mapJobError(err)
	}

	return c.JSON(http.StatusOK, &ProfileResponse{
		Success:           true,
		ProfileArtifactID: req.CompanyID,
		Status:            "completed",
		ChunksProcessed:   len(chunks),
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	})
}
