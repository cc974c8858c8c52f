package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/queue"
)

// enqueueDiscoveryLegacyHandler handles POST /v2/encontrar_site: enqueues
// stage 2 (Discovery). Idempotent — re-enqueuing a company with an active
// job returns the same accepted shape rather than an error, per spec.md §6.
func (s *Server) enqueueDiscoveryLegacyHandler(c *echo.Context) error {
	var req CompanyIDRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CompanyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "companyId is required")
	}

	if _, err := s.discoveryStore.Enqueue(c.Request().Context(), req.CompanyID); err != nil {
		return mapJobError(err)
	}

	return c.JSON(http.StatusOK, &AcceptedResponse{
		Success:   true,
		CompanyID: req.CompanyID,
		Status:    "accepted",
	})
}

// enqueueHandler handles POST /v2/queue_{discovery,profile}/enqueue for
// whichever store is bound, returning 201 on a fresh enqueue and 200 with
// enqueued:false when a job is already active for the company.
func (s *Server) enqueueHandler(store *queue.Store) echo.HandlerFunc {
	return func(c *echo.Context) error {
		var req CompanyIDRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if req.CompanyID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "companyId is required")
		}

		enqueued, err := store.Enqueue(c.Request().Context(), req.CompanyID)
		if err != nil {
			return mapJobError(err)
		}
		if !enqueued {
			return c.JSON(http.StatusOK, &EnqueueResponse{Enqueued: false})
		}
		return c.JSON(http.StatusCreated, &EnqueueResponse{Enqueued: true})
	}
}

// enqueueBatchHandler handles POST /v2/queue_{discovery,profile}/enqueue_batch.
func (s *Server) enqueueBatchHandler(store *queue.Store) echo.HandlerFunc {
	return func(c *echo.Context) error {
		var req EnqueueBatchRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		var resp EnqueueBatchResponse
		for _, companyID := range req.CompanyIDs {
			if companyID == "" {
				continue
			}
			enqueued, err := store.Enqueue(c.Request().Context(), companyID)
			if err != nil {
				return mapJobError(err)
			}
			if enqueued {
				resp.Enqueued++
			} else {
				resp.Skipped++
			}
		}
		return c.JSON(http.StatusOK, &resp)
	}
}

// metricsHandler handles GET /v2/queue_{discovery,profile}/metrics.
func (s *Server) metricsHandler(store *queue.Store) echo.HandlerFunc {
	return func(c *echo.Context) error {
		metrics, err := store.GetMetrics(c.Request().Context())
		if err != nil {
			return mapJobError(err)
		}
		return c.JSON(http.StatusOK, metrics)
	}
}
