package ingestion

import (
	"github.com/gin-gonic/gin"
	"github.com/meridian-lab/project-meridian/internal/core/channel"
	"github.com/meridian-lab/project-meridian/internal/core/storage"
)

type Service struct {
	store            storage.TouchpointStore
	resolver         *channel.Resolver
	maxBodySizeBytes int
}

func NewService(store storage.TouchpointStore, resolver *channel.Resolver, maxBodySizeMB int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if resolver == nil {
		resolver = channel.NewResolver(nil)
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            store,
		resolver:         resolver,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/touchpoints", s.IngestHandler)
	r.GET("/v1/touchpoints/:user_id", s.ListTouchpointsHandler)
}
