package admin

import (
	"github.com/dashpin-lab/dashpin/internal/core/storage"
	"github.com/gin-gonic/gin"
)

// Service exposes the operator-facing maintenance surface: reporting range
// reads and the raw SQL escape hatch. These are the only callers that get to
// see storage errors; everything else in the system treats persistence as
// best-effort.
type Service struct {
	store storage.ReportingStore
}

func NewService(store storage.ReportingStore) *Service {
	return &Service{store: store}
}

func (s *Service) RegisterRoutes(r *gin.Engine) {
	r.GET("/admin/reporting", s.QueryReportingHandler)
	r.POST("/admin/sql", s.ExecuteSQLHandler)
}
