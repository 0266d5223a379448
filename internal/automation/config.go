package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/primebets/advisor/internal/kv"
	"github.com/primebets/advisor/internal/scheduler"
)

// Job names
const (
	JobDailyPredictions   = "daily-predictions"
	JobPlatformUpdates    = "platform-updates"
	JobPerformanceReports = "performance-reports"
	JobPremiumChecks      = "premium-checks"
	JobRenewalReminders   = "renewal-reminders"
	JobOddsMonitoring     = "odds-monitoring"
)

// JobNames lists every automation in registration order
var JobNames = []string{
	JobDailyPredictions,
	JobPlatformUpdates,
	JobPerformanceReports,
	JobPremiumChecks,
	JobRenewalReminders,
	JobOddsMonitoring,
}

const configKey = "automation_config"

var (
	// ErrUnknownJob is returned for a job name that is not an automation
	ErrUnknownJob = errors.New("unknown automation job")

	// ErrInvalidConfig is returned when a patch yields an unusable schedule
	ErrInvalidConfig = errors.New("invalid automation config")
)

// Duration is a time.Duration that encodes as "6h0m0s" in JSON
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// JobConfig is the runtime configuration of one automation. A job runs
// every Interval when set, otherwise at Time on Day (weekly) or every day.
type JobConfig struct {
	Enabled        bool     `json:"enabled"`
	Interval       Duration `json:"interval,omitempty"`
	Time           string   `json:"time,omitempty"`
	Day            string   `json:"day,omitempty"`
	Timezone       string   `json:"timezone,omitempty"`
	RunImmediately bool     `json:"run_immediately,omitempty"`

	RetryOnError bool     `json:"retry_on_error,omitempty"`
	MaxRetries   int      `json:"max_retries,omitempty"`
	RetryBackoff Duration `json:"retry_backoff,omitempty"`

	IncludeRecommendations bool `json:"include_recommendations,omitempty"`

	AutoRenew          bool `json:"auto_renew,omitempty"`
	NotifyOnExpiration bool `json:"notify_on_expiration,omitempty"`

	ReminderDays []int `json:"reminder_days,omitempty"`

	PremiumOnly bool `json:"premium_only,omitempty"`
	// ValueThreshold is the minimum percentage above the market average
	ValueThreshold float64 `json:"value_threshold,omitempty"`
}

// Rule builds the scheduling rule the config describes
func (c JobConfig) Rule() (scheduler.Rule, error) {
	if c.Interval > 0 {
		return scheduler.Every(time.Duration(c.Interval)), nil
	}

	loc := time.Local
	if c.Timezone != "" {
		l, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
		}
		loc = l
	}

	hour, minute, err := scheduler.ParseClock(c.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Day == "" {
		return scheduler.DailyAt(hour, minute, loc), nil
	}

	day, err := scheduler.ParseWeekday(c.Day)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return scheduler.WeeklyAt(day, hour, minute, loc), nil
}

// Validate checks that the config can be scheduled
func (c JobConfig) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidConfig)
	}
	if c.ValueThreshold < 0 {
		return fmt.Errorf("%w: value_threshold must not be negative", ErrInvalidConfig)
	}
	for _, d := range c.ReminderDays {
		if d < 0 {
			return fmt.Errorf("%w: reminder days must not be negative", ErrInvalidConfig)
		}
	}
	_, err := c.Rule()
	return err
}

// JobPatch holds the fields to change; nil fields are left as they are
type JobPatch struct {
	Enabled                *bool     `json:"enabled,omitempty"`
	Interval               *Duration `json:"interval,omitempty"`
	Time                   *string   `json:"time,omitempty"`
	Day                    *string   `json:"day,omitempty"`
	Timezone               *string   `json:"timezone,omitempty"`
	RunImmediately         *bool     `json:"run_immediately,omitempty"`
	RetryOnError           *bool     `json:"retry_on_error,omitempty"`
	MaxRetries             *int      `json:"max_retries,omitempty"`
	RetryBackoff           *Duration `json:"retry_backoff,omitempty"`
	IncludeRecommendations *bool     `json:"include_recommendations,omitempty"`
	AutoRenew              *bool     `json:"auto_renew,omitempty"`
	NotifyOnExpiration     *bool     `json:"notify_on_expiration,omitempty"`
	ReminderDays           []int     `json:"reminder_days,omitempty"`
	PremiumOnly            *bool     `json:"premium_only,omitempty"`
	ValueThreshold         *float64  `json:"value_threshold,omitempty"`
}

// Apply merges p into c
func (p JobPatch) Apply(c JobConfig) JobConfig {
	set(&c.Enabled, p.Enabled)
	set(&c.Interval, p.Interval)
	set(&c.Time, p.Time)
	set(&c.Day, p.Day)
	set(&c.Timezone, p.Timezone)
	set(&c.RunImmediately, p.RunImmediately)
	set(&c.RetryOnError, p.RetryOnError)
	set(&c.MaxRetries, p.MaxRetries)
	set(&c.RetryBackoff, p.RetryBackoff)
	set(&c.IncludeRecommendations, p.IncludeRecommendations)
	set(&c.AutoRenew, p.AutoRenew)
	set(&c.NotifyOnExpiration, p.NotifyOnExpiration)
	set(&c.PremiumOnly, p.PremiumOnly)
	set(&c.ValueThreshold, p.ValueThreshold)
	if p.ReminderDays != nil {
		c.ReminderDays = slices.Clone(p.ReminderDays)
	}
	return c
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

const saoPaulo = "America/Sao_Paulo"

// Defaults returns the compiled-in configuration of every job
func Defaults() map[string]JobConfig {
	return map[string]JobConfig{
		JobDailyPredictions: {
			Enabled:  true,
			Time:     "08:00",
			Timezone: saoPaulo,
		},
		JobPlatformUpdates: {
			Enabled:        true,
			Interval:       Duration(6 * time.Hour),
			RunImmediately: true,
			RetryOnError:   true,
			MaxRetries:     3,
			RetryBackoff:   Duration(2 * time.Second),
		},
		JobPerformanceReports: {
			Enabled:                true,
			Day:                    "monday",
			Time:                   "09:00",
			Timezone:               saoPaulo,
			IncludeRecommendations: true,
		},
		JobPremiumChecks: {
			Enabled:            true,
			Interval:           Duration(time.Hour),
			RunImmediately:     true,
			AutoRenew:          true,
			NotifyOnExpiration: true,
		},
		JobRenewalReminders: {
			Enabled:      true,
			Time:         "10:00",
			Timezone:     saoPaulo,
			ReminderDays: []int{7, 3, 1, 0},
		},
		JobOddsMonitoring: {
			Enabled:        true,
			Interval:       Duration(15 * time.Minute),
			PremiumOnly:    true,
			ValueThreshold: 10,
		},
	}
}

// ConfigStore persists the effective configuration under one key
type ConfigStore struct {
	store  kv.Store
	logger *slog.Logger
	mu     sync.Mutex
}

func NewConfigStore(store kv.Store, logger *slog.Logger) *ConfigStore {
	return &ConfigStore{store: store, logger: logger}
}

// Load returns the defaults overlaid with the stored entries. A corrupt or
// unusable stored entry falls back to its default.
func (c *ConfigStore) Load(ctx context.Context) (map[string]JobConfig, error) {
	cfgs := Defaults()

	var stored map[string]JobConfig
	found, err := kv.GetJSON(ctx, c.store, configKey, &stored)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation config: %w", err)
	}
	if !found {
		return cfgs, nil
	}

	for name, cfg := range stored {
		if _, ok := cfgs[name]; !ok {
			continue
		}
		if err := cfg.Validate(); err != nil {
			c.logger.Warn("Ignoring stored automation config",
				slog.String("job", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		cfgs[name] = cfg
	}
	return cfgs, nil
}

// Update merges patch into the named job and persists the effective map
func (c *ConfigStore) Update(ctx context.Context, name string, patch JobPatch) (JobConfig, error) {
	if !slices.Contains(JobNames, name) {
		return JobConfig{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cfgs, err := c.Load(ctx)
	if err != nil {
		return JobConfig{}, err
	}

	cfg := patch.Apply(cfgs[name])
	if err := cfg.Validate(); err != nil {
		return JobConfig{}, err
	}
	cfgs[name] = cfg

	if err := kv.SetJSON(ctx, c.store, configKey, cfgs); err != nil {
		return JobConfig{}, fmt.Errorf("failed to save automation config: %w", err)
	}
	return cfg, nil
}

// Reset removes the stored configuration and returns the defaults
func (c *ConfigStore) Reset(ctx context.Context) (map[string]JobConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, configKey); err != nil {
		return nil, fmt.Errorf("failed to reset automation config: %w", err)
	}
	return Defaults(), nil
}
