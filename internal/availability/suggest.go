package availability

import (
	"context"
	"time"
)

// Confidence grades an alternative slot.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Suggestion is an alternative window for a rejected request.
type Suggestion struct {
	Window           TimeWindow   `json:"window"`
	Confidence       Confidence   `json:"confidence"`
	Code             ResultCode   `json:"code"`
	UnavailableCount int          `json:"unavailable_count"`
	Available        []Instructor `json:"available_instructors"`
}

// SuggestAlternatives walks DaysAhead calendar days forward starting with the request's own date,
// skipping weekends, trying every hourly
// start inside business hours with the original duration. Fully free slots are "high"; slots whose
// conflicts are all non-critical and that leave at least one instructor free are "medium".
// It stops at MaxSuggestions and returns slots in chronological order. When ctx ends early the slots
// collected so far are returned together with ctx's error.
func (e *Engine) SuggestAlternatives(ctx context.Context, req Request, snap Snapshot) ([]Suggestion, error) {
	window, err := e.validate(req)
	if err != nil {
		return nil, err
	}
	duration := window.Duration()
	origin := DateOf(window.Start, e.cfg.Zone)

	suggestions := make([]Suggestion, 0, e.cfg.MaxSuggestions)
	for offset := 0; offset < e.cfg.DaysAhead; offset++ {
		day := origin.AddDate(0, 0, offset)
		if isWeekend(day) {
			continue
		}
		closing := AtClock(day, e.cfg.BusinessEnd)
		for start := AtClock(day, e.cfg.BusinessStart); !start.Add(duration).After(closing); start = start.Add(time.Hour) {
			if err := ctx.Err(); err != nil {
				return suggestions, err
			}
			candidate := TimeWindow{Start: start, End: start.Add(duration)}
			if candidate.Start.Equal(window.Start) {
				continue
			}
			attempt := req
			attempt.Window = candidate
			result, err := e.Evaluate(attempt, snap)
			if err != nil {
				return suggestions, err
			}
			if s, ok := e.grade(candidate, result); ok {
				suggestions = append(suggestions, s)
				if len(suggestions) >= e.cfg.MaxSuggestions {
					return suggestions, nil
				}
			}
		}
	}
	return suggestions, nil
}

func (e *Engine) grade(candidate TimeWindow, result Result) (Suggestion, bool) {
	s := Suggestion{Window: candidate, Code: result.Code}
	for _, outcome := range result.Instructors {
		if outcome.Available {
			s.Available = append(s.Available, outcome.Instructor)
		}
	}
	if result.Available {
		s.Confidence = ConfidenceHigh
		return s, true
	}
	if !e.cfg.AllowsCreation(result) || len(s.Available) == 0 {
		return Suggestion{}, false
	}
	s.Confidence = ConfidenceMedium
	s.UnavailableCount = result.UnavailableCount()
	return s, true
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
