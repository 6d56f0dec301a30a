package scheduler

import (
	"fmt"
	"time"

	"propsync/internal/config"
)

// Policy derives the current polling interval from wall-clock time and
// static configuration. Every invocation computes the same decision from the
// clock alone, so uncoordinated triggers can all consult it safely.
type Policy struct {
	cfg config.BusinessHoursConfig
	loc *time.Location
}

func NewPolicy(cfg config.BusinessHoursConfig) (*Policy, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	return &Policy{cfg: cfg, loc: loc}, nil
}

// IsBusinessHours reports whether t falls inside the configured window.
// With the window disabled every instant counts as business hours.
func (p *Policy) IsBusinessHours(t time.Time) bool {
	if !p.cfg.Enabled {
		return true
	}

	local := t.In(p.loc)

	if p.cfg.WeekdaysOnly {
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}

	hour := local.Hour()
	return hour >= p.cfg.StartHour && hour < p.cfg.EndHour
}

// SyncInterval returns the polling interval in minutes in effect at t.
func (p *Policy) SyncInterval(t time.Time) int {
	if p.IsBusinessHours(t) {
		return p.cfg.BusinessHoursInterval
	}
	return p.cfg.OffHoursInterval
}

// ShouldSyncNow reports whether t sits on a sync boundary: the minute of the
// hour is an exact multiple of the interval, so a 15-minute interval fires
// at :00/:15/:30/:45 and a 60-minute interval only at :00.
func (p *Policy) ShouldSyncNow(t time.Time) bool {
	interval := p.SyncInterval(t)
	if interval <= 0 {
		return false
	}
	return t.In(p.loc).Minute()%interval == 0
}

// NextSyncTime returns the smallest boundary strictly after t.
func (p *Policy) NextSyncTime(t time.Time) time.Time {
	interval := p.SyncInterval(t)
	if interval <= 0 {
		return t
	}

	local := t.In(p.loc)
	top := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, p.loc)
	return top.Add(time.Duration((local.Minute()/interval+1)*interval) * time.Minute)
}
