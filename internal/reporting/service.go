package reporting

import (
	"github.com/gin-gonic/gin"
	"github.com/meridian-lab/project-meridian/internal/attribution"
)

type Service struct {
	reports attribution.ReportStore
	runner  *attribution.Runner
}

func NewService(reports attribution.ReportStore, runner *attribution.Runner) *Service {
	if reports == nil {
		panic("reporting: report store must not be nil")
	}
	if runner == nil {
		panic("reporting: runner must not be nil")
	}
	return &Service{reports: reports, runner: runner}
}

// RegisterRoutes registers the reporting service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/attribution/report", s.LatestReportHandler)
	r.POST("/v1/attribution/recompute", s.RecomputeHandler)
}
