package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/primebets/advisor/internal/scheduler"
)

// Manager is the control surface over the automation jobs. It owns the
// mapping from runtime config to scheduler registrations.
type Manager struct {
	scheduler *scheduler.Scheduler
	handlers  *Handlers
	configs   *ConfigStore
	logger    *slog.Logger

	mu sync.Mutex
}

func NewManager(s *scheduler.Scheduler, handlers *Handlers, configs *ConfigStore, logger *slog.Logger) *Manager {
	return &Manager{
		scheduler: s,
		handlers:  handlers,
		configs:   configs,
		logger:    logger,
	}
}

// InitializeAll registers every job from the effective config. Jobs marked
// to run immediately fire once before their first scheduled slot.
func (m *Manager) InitializeAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfgs, err := m.configs.Load(ctx)
	if err != nil {
		return err
	}

	for _, name := range JobNames {
		if err := m.apply(name, cfgs[name], true); err != nil {
			return err
		}
	}

	m.logger.Info("Automations initialized", slog.Int("jobs", len(JobNames)))
	return nil
}

// apply registers name with cfg. A disabled job is registered and stopped
// so it still shows in Status and can be restarted by hand.
func (m *Manager) apply(name string, cfg JobConfig, initial bool) error {
	rule, err := cfg.Rule()
	if err != nil {
		return fmt.Errorf("failed to build schedule for %s: %w", name, err)
	}

	handler, err := m.handlers.For(name, cfg)
	if err != nil {
		return err
	}

	runNow := initial && cfg.Enabled && cfg.RunImmediately
	if err := m.scheduler.Register(name, rule, handler, runNow); err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}

	if !cfg.Enabled {
		m.scheduler.Stop(name)
	}

	m.logger.Info("Automation configured",
		slog.String("job", name),
		slog.String("schedule", rule.String()),
		slog.Bool("enabled", cfg.Enabled),
	)
	return nil
}

func (m *Manager) StopAll() {
	m.scheduler.StopAll()
	m.logger.Info("All automations stopped")
}

func (m *Manager) RestartAll() {
	m.scheduler.RestartAll()
	m.logger.Info("All automations restarted")
}

// Stop is a no-op for unknown names
func (m *Manager) Stop(name string) {
	m.scheduler.Stop(name)
}

// Restart is a no-op for unknown names
func (m *Manager) Restart(name string) {
	m.scheduler.Restart(name)
}

func (m *Manager) Status() []scheduler.JobStatus {
	return m.scheduler.List()
}

// Config returns the effective configuration of every job
func (m *Manager) Config(ctx context.Context) (map[string]JobConfig, error) {
	return m.configs.Load(ctx)
}

// UpdateConfig persists patch and applies the result to the live scheduler
func (m *Manager) UpdateConfig(ctx context.Context, name string, patch JobPatch) (JobConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.configs.Update(ctx, name, patch)
	if err != nil {
		return JobConfig{}, err
	}

	if err := m.apply(name, cfg, false); err != nil {
		return JobConfig{}, err
	}
	return cfg, nil
}

// ResetConfig restores the defaults and re-applies them to every job
func (m *Manager) ResetConfig(ctx context.Context) (map[string]JobConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfgs, err := m.configs.Reset(ctx)
	if err != nil {
		return nil, err
	}

	for _, name := range JobNames {
		if err := m.apply(name, cfgs[name], false); err != nil {
			return nil, err
		}
	}

	m.logger.Info("Automation config reset to defaults")
	return cfgs, nil
}
