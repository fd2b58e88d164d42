package availability

import "time"

// Config tunes the engine. It is a value: build it once and pass it around.
type Config struct {
	Zone           *time.Location
	TravelBuffer   time.Duration
	DailyHourLimit float64
	BusinessStart  ClockTime
	BusinessEnd    ClockTime
	MinNoticeHard  time.Duration
	MinNoticeSoft  time.Duration
	CriticalCodes  []ConflictCode
	DaysAhead      int
	MaxSuggestions int
}

// DefaultConfig returns the institutional defaults in zone.
func DefaultConfig(zone *time.Location) Config {
	if zone == nil {
		zone = time.UTC
	}
	return Config{
		Zone:           zone,
		TravelBuffer:   90 * time.Minute,
		DailyHourLimit: 8,
		BusinessStart:  ClockTime{Hour: 8},
		BusinessEnd:    ClockTime{Hour: 17},
		MinNoticeHard:  24 * time.Hour,
		MinNoticeSoft:  7 * 24 * time.Hour,
		CriticalCodes:  []ConflictCode{CodeTotalBlock, CodeOverlap},
		DaysAhead:      30,
		MaxSuggestions: 10,
	}
}

// withDefaults fills zero fields so a partially built Config behaves like DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Zone)
	if c.Zone == nil {
		c.Zone = d.Zone
	}
	if c.TravelBuffer <= 0 {
		c.TravelBuffer = d.TravelBuffer
	}
	if c.DailyHourLimit <= 0 {
		c.DailyHourLimit = d.DailyHourLimit
	}
	if c.BusinessStart == (ClockTime{}) && c.BusinessEnd == (ClockTime{}) {
		c.BusinessStart = d.BusinessStart
		c.BusinessEnd = d.BusinessEnd
	}
	if c.MinNoticeHard <= 0 {
		c.MinNoticeHard = d.MinNoticeHard
	}
	if c.MinNoticeSoft <= 0 {
		c.MinNoticeSoft = d.MinNoticeSoft
	}
	if len(c.CriticalCodes) == 0 {
		c.CriticalCodes = d.CriticalCodes
	} else {
		c.CriticalCodes = append([]ConflictCode(nil), c.CriticalCodes...)
	}
	if c.DaysAhead <= 0 {
		c.DaysAhead = d.DaysAhead
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = d.MaxSuggestions
	}
	return c
}

// IsCritical reports whether code hard-blocks creation.
func (c Config) IsCritical(code ConflictCode) bool {
	for _, critical := range c.CriticalCodes {
		if critical == code {
			return true
		}
	}
	return false
}

// BlockingConflicts returns the conflicts of r that prevent creation.
func (c Config) BlockingConflicts(r Result) []Conflict {
	var out []Conflict
	for _, conflict := range r.Conflicts {
		if c.IsCritical(conflict.Code) {
			out = append(out, conflict)
		}
	}
	return out
}

// AllowsCreation is true when r carries no critical conflict.
func (c Config) AllowsCreation(r Result) bool {
	return len(c.BlockingConflicts(r)) == 0
}
