package services

import (
	"context"
	"time"

	"rowmatch/pkg/contracts"
	api "rowmatch/pkg/contracts/api/v1"
)

// HealthService reports liveness and build information
type HealthService struct {
	startTime time.Time
	now       func() time.Time
}

// NewHealthService creates a health service counting uptime from now
func NewHealthService() *HealthService {
	return &HealthService{startTime: time.Now(), now: time.Now}
}

// Health returns the liveness status
func (h *HealthService) Health(ctx context.Context) api.HealthResponse {
	return api.HealthResponse{
		Status:  "healthy",
		Version: contracts.Version,
		Uptime:  h.now().Sub(h.startTime).Truncate(time.Second).String(),
	}
}

// Version returns the build information
func (h *HealthService) Version(ctx context.Context) contracts.VersionInfo {
	return contracts.GetVersionInfo()
}
