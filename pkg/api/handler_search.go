package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/orchestration"
)

// searchHandler handles POST /v2/serper: stage 1 (Search), run synchronously.
func (s *Server) searchHandler(c *echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CompanyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "companyId is required")
	}

	meta := orchestration.RegistryMetadata{
		CompanyID:     req.CompanyID,
		CorporateName: req.CorporateName,
		TradeName:     req.TradeName,
		Municipality:  req.Municipality,
	}

	row, err := orchestration.RunSearchJob(c.Request().Context(), s.repo, s.searchClient, meta)
	if err != nil {
		return mapJobError(err)
	}

	return c.JSON(http.StatusOK, &SearchResponse{
		Success:     true,
		ArtifactID:  row.ID,
		ResultCount: row.ResultsCount,
		QueryUsed:   row.QueryUsed,
	})
}
