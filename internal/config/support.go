package config

import (
	"fmt"
	"time"
)

// SLAHours is the hour budget for one ticket priority.
type SLAHours struct {
	FirstResponseHours int `koanf:"first_response_hours"`
	ResolutionHours    int `koanf:"resolution_hours"`
}

// SLAConfig holds the budgets for every ticket priority.
type SLAConfig struct {
	Urgent SLAHours `koanf:"urgent"`
	High   SLAHours `koanf:"high"`
	Medium SLAHours `koanf:"medium"`
	Low    SLAHours `koanf:"low"`
}

// SupportConfig configures the support desk.
type SupportConfig struct {
	SLA SLAConfig `koanf:"sla"`

	// TeamEmail receives SLA breach alerts.
	TeamEmail string `koanf:"team_email"`

	// AtRiskThreshold is the elapsed fraction after which a clock is "at risk".
	AtRiskThreshold float64 `koanf:"at_risk_threshold"`
}

func DefaultSupportConfig() *SupportConfig {
	return &SupportConfig{
		SLA: SLAConfig{
			Urgent: SLAHours{FirstResponseHours: 1, ResolutionHours: 4},
			High:   SLAHours{FirstResponseHours: 4, ResolutionHours: 24},
			Medium: SLAHours{FirstResponseHours: 8, ResolutionHours: 48},
			Low:    SLAHours{FirstResponseHours: 24, ResolutionHours: 72},
		},
		TeamEmail:       "support@schoolhub.local",
		AtRiskThreshold: 0.75,
	}
}

// Validate rejects zero or negative budgets. A partially configured block
// inherits defaults for the priorities left empty.
func (c *SupportConfig) Validate() error {
	def := DefaultSupportConfig()

	fill := func(name string, h *SLAHours, d SLAHours) error {
		if h.FirstResponseHours == 0 && h.ResolutionHours == 0 {
			*h = d
			return nil
		}
		if h.FirstResponseHours <= 0 || h.ResolutionHours <= 0 {
			return fmt.Errorf("sla.%s: hours must be positive", name)
		}
		if h.FirstResponseHours > h.ResolutionHours {
			return fmt.Errorf("sla.%s: first response budget exceeds resolution budget", name)
		}
		return nil
	}

	if err := fill("urgent", &c.SLA.Urgent, def.SLA.Urgent); err != nil {
		return err
	}
	if err := fill("high", &c.SLA.High, def.SLA.High); err != nil {
		return err
	}
	if err := fill("medium", &c.SLA.Medium, def.SLA.Medium); err != nil {
		return err
	}
	if err := fill("low", &c.SLA.Low, def.SLA.Low); err != nil {
		return err
	}

	if c.TeamEmail == "" {
		c.TeamEmail = def.TeamEmail
	}

	if c.AtRiskThreshold == 0 {
		c.AtRiskThreshold = def.AtRiskThreshold
	}
	if c.AtRiskThreshold < 0 || c.AtRiskThreshold >= 1 {
		return fmt.Errorf("at_risk_threshold must be in [0, 1)")
	}

	return nil
}

// JobsConfig configures the background worker and the periodic scheduler.
type JobsConfig struct {
	// Concurrency is the number of asynq workers.
	Concurrency int `koanf:"concurrency"`

	// SLASweepSpec and ReminderSpec are robfig/cron specs.
	SLASweepSpec string `koanf:"sla_sweep_spec"`
	ReminderSpec string `koanf:"reminder_spec"`

	// ReminderWindow is how far ahead live-class reminders are sent.
	ReminderWindow time.Duration `koanf:"reminder_window"`

	// SchedulerEnabled turns the cron scheduler on for this replica.
	SchedulerEnabled *bool `koanf:"scheduler_enabled"`
}

func DefaultJobsConfig() *JobsConfig {
	enabled := true
	return &JobsConfig{
		Concurrency:      10,
		SLASweepSpec:     "@every 5m",
		ReminderSpec:     "@every 1m",
		ReminderWindow:   60 * time.Minute,
		SchedulerEnabled: &enabled,
	}
}

func (c *JobsConfig) Validate() error {
	def := DefaultJobsConfig()

	if c.Concurrency == 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.SLASweepSpec == "" {
		c.SLASweepSpec = def.SLASweepSpec
	}
	if c.ReminderSpec == "" {
		c.ReminderSpec = def.ReminderSpec
	}
	if c.ReminderWindow == 0 {
		c.ReminderWindow = def.ReminderWindow
	}
	if c.ReminderWindow < time.Minute {
		return fmt.Errorf("reminder_window must be at least 1m")
	}
	if c.SchedulerEnabled == nil {
		c.SchedulerEnabled = def.SchedulerEnabled
	}

	return nil
}

// SchedulerOn reports whether this replica runs the cron scheduler.
func (c *JobsConfig) SchedulerOn() bool {
	return c.SchedulerEnabled == nil || *c.SchedulerEnabled
}
