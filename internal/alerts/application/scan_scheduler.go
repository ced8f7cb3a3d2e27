package application

import (
	"context"
	"log"
	"time"
)

// Scheduler runs periodic scans for the configured tenants.
type Scheduler struct {
	service  *Service
	tenants  []TenantScan
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(service *Service, cfg ScanConfig, logger *log.Logger) *Scheduler {
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		service:  service,
		tenants:  cfg.Tenants,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.service == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	for _, tenant := range s.tenants {
		if tenant.TenantID == "" {
			continue
		}
		result, err := s.service.RunScan(ctx, tenant.TenantID, tenant.ZoneID, "")
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("scan schedule error: tenant=%s err=%v", tenant.TenantID, err)
			}
			continue
		}
		if s.logger != nil {
			s.logger.Printf("scan complete: tenant=%s checked=%d created=%d updated=%d resolved=%d",
				tenant.TenantID, result.CheckedSensors, result.Created, result.Updated, result.Resolved)
		}
	}
}
