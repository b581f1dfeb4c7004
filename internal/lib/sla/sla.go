// Package sla computes support ticket deadlines and their status.
//
// A ticket runs two clocks: time to first response and time to resolution.
// Each clock has an hour budget per priority. A clock is breached once the
// reference time (completion, or now while still running) passes the
// deadline, and at risk once most of the budget is consumed.
package sla

import (
	"fmt"
	"time"

	"github.com/deppfellow/schoolhub/internal/config"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Clock identifies which deadline is being measured.
type Clock string

const (
	ClockFirstResponse Clock = "first_response"
	ClockResolution    Clock = "resolution"
)

type Status string

const (
	StatusOnTrack  Status = "on_track"
	StatusAtRisk   Status = "at_risk"
	StatusBreached Status = "breached"
)

// severity orders statuses so the worst one can be picked.
func (s Status) severity() int {
	switch s {
	case StatusBreached:
		return 2
	case StatusAtRisk:
		return 1
	default:
		return 0
	}
}

// ErrUnknownPriority is returned for priorities without a budget.
type ErrUnknownPriority struct {
	Priority Priority
}

func (e ErrUnknownPriority) Error() string {
	return fmt.Sprintf("sla: unknown priority %q", string(e.Priority))
}

// Policy holds the hour budgets per priority.
type Policy struct {
	budgets         map[Priority]config.SLAHours
	atRiskThreshold float64
}

// NewPolicy builds a policy from validated support config.
func NewPolicy(cfg *config.SupportConfig) *Policy {
	threshold := cfg.AtRiskThreshold
	if threshold <= 0 {
		threshold = 0.75
	}
	return &Policy{
		budgets: map[Priority]config.SLAHours{
			PriorityUrgent: cfg.SLA.Urgent,
			PriorityHigh:   cfg.SLA.High,
			PriorityMedium: cfg.SLA.Medium,
			PriorityLow:    cfg.SLA.Low,
		},
		atRiskThreshold: threshold,
	}
}

// DefaultPolicy uses the built-in budgets.
func DefaultPolicy() *Policy {
	return NewPolicy(config.DefaultSupportConfig())
}

// Budget returns the allowed duration for one clock.
func (p *Policy) Budget(priority Priority, clock Clock) (time.Duration, error) {
	hours, ok := p.budgets[priority]
	if !ok {
		return 0, ErrUnknownPriority{Priority: priority}
	}

	switch clock {
	case ClockFirstResponse:
		return time.Duration(hours.FirstResponseHours) * time.Hour, nil
	case ClockResolution:
		return time.Duration(hours.ResolutionHours) * time.Hour, nil
	default:
		return 0, fmt.Errorf("sla: unknown clock %q", string(clock))
	}
}

// Deadline is createdAt plus the budget of the clock.
func (p *Policy) Deadline(priority Priority, createdAt time.Time, clock Clock) (time.Time, error) {
	budget, err := p.Budget(priority, clock)
	if err != nil {
		return time.Time{}, err
	}
	return createdAt.Add(budget), nil
}

// Evaluation is the state of one clock.
type Evaluation struct {
	Clock    Clock         `json:"clock"`
	Status   Status        `json:"status"`
	Deadline time.Time     `json:"deadline"`
	Met      bool          `json:"met"`
	Elapsed  float64       `json:"elapsed_fraction"`
	Remains  time.Duration `json:"-"`

	// RemainingSeconds is negative once the deadline has passed.
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// Evaluate classifies a clock. completedAt stops the clock; otherwise now is used.
func (p *Policy) Evaluate(createdAt, deadline time.Time, completedAt *time.Time, now time.Time) Evaluation {
	reference := now
	if completedAt != nil {
		reference = *completedAt
	}

	total := deadline.Sub(createdAt)
	elapsed := reference.Sub(createdAt)

	var fraction float64
	if total > 0 {
		fraction = float64(elapsed) / float64(total)
	} else {
		fraction = 1
	}
	if fraction < 0 {
		fraction = 0
	}

	status := StatusOnTrack
	switch {
	case reference.After(deadline):
		status = StatusBreached
	case fraction > p.atRiskThreshold:
		status = StatusAtRisk
	}

	remaining := deadline.Sub(reference)

	return Evaluation{
		Status:           status,
		Deadline:         deadline,
		Met:              completedAt != nil && !completedAt.After(deadline),
		Elapsed:          fraction,
		Remains:          remaining,
		RemainingSeconds: int64(remaining / time.Second),
	}
}

// Ticket is the subset of ticket state the SLA needs.
type Ticket struct {
	Priority        Priority
	CreatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
}

// Report evaluates both clocks of a ticket.
type Report struct {
	Priority      Priority   `json:"priority"`
	FirstResponse Evaluation `json:"first_response"`
	Resolution    Evaluation `json:"resolution"`
	Overall       Status     `json:"overall"`
}

// Breaches lists the clocks currently breached.
func (r Report) Breaches() []Clock {
	var out []Clock
	if r.FirstResponse.Status == StatusBreached {
		out = append(out, ClockFirstResponse)
	}
	if r.Resolution.Status == StatusBreached {
		out = append(out, ClockResolution)
	}
	return out
}

// ForTicket evaluates both clocks and reports the worst status as Overall.
func (p *Policy) ForTicket(t Ticket, now time.Time) (Report, error) {
	frDeadline, err := p.Deadline(t.Priority, t.CreatedAt, ClockFirstResponse)
	if err != nil {
		return Report{}, err
	}
	resDeadline, err := p.Deadline(t.Priority, t.CreatedAt, ClockResolution)
	if err != nil {
		return Report{}, err
	}

	fr := p.Evaluate(t.CreatedAt, frDeadline, t.FirstResponseAt, now)
	fr.Clock = ClockFirstResponse

	res := p.Evaluate(t.CreatedAt, resDeadline, t.ResolvedAt, now)
	res.Clock = ClockResolution

	overall := fr.Status
	if res.Status.severity() > overall.severity() {
		overall = res.Status
	}

	return Report{
		Priority:      t.Priority,
		FirstResponse: fr,
		Resolution:    res,
		Overall:       overall,
	}, nil
}
