package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/orchestration"
)

// scrapeHandler handles POST /v2/scrape: stage 3 (Scrape), run synchronously.
func (s *Server) scrapeHandler(c *echo.Context) error {
	var req ScrapeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CompanyID == "" || req.WebsiteURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "companyId and websiteUrl are required")
	}

	start := time.Now()
	result, err := orchestration.RunScrapeJob(c.Request().Context(), s.repo, s.scraper, req.CompanyID, req.WebsiteURL)
	if err != nil {
		return mapJobError(err)
	}

	return c.JSON(http.StatusOK, &ScrapeResponse{
		Success:          result.ChunksSaved > 0,
		ChunksSaved:      result.ChunksSaved,
		TotalTokens:      result.TotalTokens,
		PagesScraped:     result.PagesScraped,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	})
}
