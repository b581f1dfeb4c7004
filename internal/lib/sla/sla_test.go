package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/config"
)

var created = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestDeadline(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		priority Priority
		clock    Clock
		want     time.Duration
	}{
		{PriorityUrgent, ClockFirstResponse, time.Hour},
		{PriorityUrgent, ClockResolution, 4 * time.Hour},
		{PriorityHigh, ClockFirstResponse, 4 * time.Hour},
		{PriorityHigh, ClockResolution, 24 * time.Hour},
		{PriorityMedium, ClockFirstResponse, 8 * time.Hour},
		{PriorityMedium, ClockResolution, 48 * time.Hour},
		{PriorityLow, ClockFirstResponse, 24 * time.Hour},
		{PriorityLow, ClockResolution, 72 * time.Hour},
	}

	for _, tc := range tests {
		t.Run(string(tc.priority)+"/"+string(tc.clock), func(t *testing.T) {
			got, err := p.Deadline(tc.priority, created, tc.clock)
			require.NoError(t, err)
			assert.Equal(t, created.Add(tc.want), got)
		})
	}
}

func TestDeadline_UnknownPriority(t *testing.T) {
	_, err := DefaultPolicy().Deadline("critical", created, ClockResolution)
	assert.ErrorAs(t, err, &ErrUnknownPriority{})
}

func TestEvaluate(t *testing.T) {
	p := DefaultPolicy()
	deadline := created.Add(4 * time.Hour)

	tests := []struct {
		name      string
		completed *time.Time
		now       time.Time
		want      Status
		met       bool
	}{
		{name: "fresh", now: created.Add(30 * time.Minute), want: StatusOnTrack},
		{name: "exactly 75 percent is still on track", now: created.Add(3 * time.Hour), want: StatusOnTrack},
		{name: "past 75 percent", now: created.Add(3*time.Hour + time.Minute), want: StatusAtRisk},
		{name: "at deadline", now: deadline, want: StatusAtRisk},
		{name: "after deadline", now: deadline.Add(time.Second), want: StatusBreached},
		{name: "completed early", completed: ptr(created.Add(time.Hour)), now: deadline.Add(48 * time.Hour), want: StatusOnTrack, met: true},
		{name: "completed late", completed: ptr(deadline.Add(time.Minute)), now: deadline.Add(time.Hour), want: StatusBreached},
		{name: "completed close to the deadline", completed: ptr(created.Add(3*time.Hour + 50*time.Minute)), now: deadline.Add(time.Hour), want: StatusAtRisk, met: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Evaluate(created, deadline, tc.completed, tc.now)
			assert.Equal(t, tc.want, got.Status)
			assert.Equal(t, tc.met, got.Met)
			assert.Equal(t, deadline, got.Deadline)
		})
	}
}

func TestEvaluate_RemainingNegativeWhenOverdue(t *testing.T) {
	p := DefaultPolicy()
	deadline := created.Add(time.Hour)

	got := p.Evaluate(created, deadline, nil, deadline.Add(90*time.Second))
	assert.Equal(t, int64(-90), got.RemainingSeconds)
	assert.InDelta(t, 1.025, got.Elapsed, 0.0001)
}

func TestForTicket_WorstClockWins(t *testing.T) {
	p := DefaultPolicy()

	// first response answered in time, resolution overdue
	report, err := p.ForTicket(Ticket{
		Priority:        PriorityUrgent,
		CreatedAt:       created,
		FirstResponseAt: ptr(created.Add(10 * time.Minute)),
	}, created.Add(5*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, StatusOnTrack, report.FirstResponse.Status)
	assert.Equal(t, StatusBreached, report.Resolution.Status)
	assert.Equal(t, StatusBreached, report.Overall)
	assert.Equal(t, []Clock{ClockResolution}, report.Breaches())
}

func TestForTicket_NoResponseYet(t *testing.T) {
	report, err := DefaultPolicy().ForTicket(Ticket{Priority: PriorityHigh, CreatedAt: created}, created.Add(3*time.Hour+30*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, StatusAtRisk, report.FirstResponse.Status)
	assert.Equal(t, StatusOnTrack, report.Resolution.Status)
	assert.Equal(t, StatusAtRisk, report.Overall)
	assert.Empty(t, report.Breaches())
}

func TestNewPolicy_CustomBudgets(t *testing.T) {
	cfg := &config.SupportConfig{SLA: config.SLAConfig{Urgent: config.SLAHours{FirstResponseHours: 2, ResolutionHours: 8}}}
	require.NoError(t, cfg.Validate())

	d, err := NewPolicy(cfg).Budget(PriorityUrgent, ClockResolution)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour, d)
}
