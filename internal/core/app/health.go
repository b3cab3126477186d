package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"planboard/internal/shared/util"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	svc *Service
}

func NewHealthService(svc *Service) *HealthService {
	return &HealthService{svc: svc}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	// Snapshots
	missing := 0
	for _, p := range s.svc.Paths.Snapshots {
		if _, err := os.Stat(p); err != nil {
			missing++
		}
	}
	if missing > 0 {
		status.Status = "degraded"
		status.Components["snapshots"] = fmt.Sprintf("%d of %d missing", missing, len(s.svc.Paths.Snapshots))
	} else {
		status.Components["snapshots"] = fmt.Sprintf("ok (%d files)", len(s.svc.Paths.Snapshots))
	}

	// History
	if s.svc.HistoryEnabled() {
		status.Components["history"] = "ok"
	} else if s.svc.Config.History.Enabled {
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	} else {
		status.Components["history"] = "disabled"
	}

	status.Components["heap_mb"] = fmt.Sprintf("%d", util.GetHeapAllocMB())
	if err := ctx.Err(); err != nil {
		status.Status = "degraded"
		status.Components["context"] = err.Error()
	}
	return status
}
