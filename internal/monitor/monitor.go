// Package monitor periodically health-checks active integrations.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hoanghai1803/pressroom/internal/models"
	"github.com/hoanghai1803/pressroom/internal/providers"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentChecks = 4

// Store lists the integrations to check.
type Store interface {
	ListActiveIntegrations(ctx context.Context) ([]models.Integration, error)
}

// Checker runs and records one integration's health check.
// *publish.Service implements it.
type Checker interface {
	CheckIntegration(ctx context.Context, in *models.Integration) (*providers.HealthCheck, error)
}

// Summary counts the outcome of one sweep.
type Summary struct {
	Checked int `json:"checked"`
	Healthy int `json:"healthy"`
	Failed  int `json:"failed"`
}

// Monitor runs a health sweep on a fixed interval.
type Monitor struct {
	store    Store
	checker  Checker
	interval time.Duration
	timeout  time.Duration

	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc

	mu   sync.Mutex
	last *Summary
}

// New creates a Monitor. An interval of zero or less disables the schedule;
// RunOnce still works. timeout bounds each check.
func New(store Store, checker Checker, interval, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		store:     store,
		checker:   checker,
		interval:  interval,
		timeout:   timeout,
		scheduler: gocron.NewScheduler(time.UTC),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the sweep. The first sweep runs immediately.
func (m *Monitor) Start() error {
	if m.interval <= 0 {
		slog.Info("integration health monitor disabled")
		return nil
	}

	m.scheduler.SingletonModeAll()
	_, err := m.scheduler.Every(m.interval).Tag("integration-health").Do(func() {
		m.RunOnce(m.ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling health checks: %w", err)
	}
	m.scheduler.StartAsync()

	slog.Info("integration health monitor started", "interval", m.interval)
	return nil
}

// Stop halts the schedule and cancels a sweep in progress.
func (m *Monitor) Stop() {
	m.cancel()
	if m.scheduler.IsRunning() {
		m.scheduler.Stop()
	}
}

// Last returns the summary of the most recent sweep, or nil before the
// first one finishes.
func (m *Monitor) Last() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	s := *m.last
	return &s
}

// RunOnce checks every active integration and returns the counts. Check
// errors are logged and counted as failures.
func (m *Monitor) RunOnce(ctx context.Context) Summary {
	list, err := m.store.ListActiveIntegrations(ctx)
	if err != nil {
		slog.Error("failed to list integrations for health check", "error", err)
		return Summary{}
	}

	var (
		mu  sync.Mutex
		sum Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)

	for i := range list {
		in := &list[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			cctx, cancel := context.WithTimeout(gctx, m.timeout)
			defer cancel()

			hc, err := m.checker.CheckIntegration(cctx, in)
			healthy := err == nil && hc != nil && hc.Healthy
			if err != nil {
				slog.Warn("integration health check failed",
					"integration_id", in.ID,
					"platform", in.Platform,
					"error", err,
				)
			}

			mu.Lock()
			sum.Checked++
			if healthy {
				sum.Healthy++
			} else {
				sum.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	last := sum
	m.last = &last
	m.mu.Unlock()

	slog.Info("integration health sweep finished",
		"checked", sum.Checked,
		"healthy", sum.Healthy,
		"failed", sum.Failed,
	)
	return sum
}
