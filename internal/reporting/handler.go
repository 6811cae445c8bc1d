package reporting

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meridian-lab/project-meridian/internal/attribution"
	httperr "github.com/meridian-lab/project-meridian/internal/core/errors"
)

// LatestReportHandler returns the most recently computed attribution report.
func (s *Service) LatestReportHandler(c *gin.Context) {
	report, err := s.reports.LatestReport(c.Request.Context())
	if errors.Is(err, attribution.ErrNoReport) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNoReportError,
			Message:   "No attribution report has been computed yet",
		})
		return
	}
	if err != nil {
		slog.Error("Failed to load latest report", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load attribution report",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// RecomputeHandler triggers a synchronous attribution recompute and returns
// the fresh report. Intended for operators; the scheduler covers the steady
// state.
func (s *Service) RecomputeHandler(c *gin.Context) {
	report, err := s.runner.RunOnce(c.Request.Context())
	if errors.Is(err, attribution.ErrNoJourneys) {
		c.JSON(http.StatusConflict, httperr.ErrorResponse{
			ErrorType: httperr.HttpEmptyDatasetError,
			Message:   "No closed journeys available to attribute",
		})
		return
	}
	if err != nil {
		slog.Error("On-demand recompute failed", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Attribution recompute failed",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}
