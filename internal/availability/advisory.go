package availability

import (
	"fmt"
	"time"
)

// AdvisoryLevel says how strongly an advisory should be surfaced. Advisories never block creation.
type AdvisoryLevel string

const (
	LevelBlocking AdvisoryLevel = "blocking"
	LevelSoft     AdvisoryLevel = "soft"
	LevelInfo     AdvisoryLevel = "info"
)

// AdvisoryCode identifies an advisory check.
type AdvisoryCode string

const (
	AdvisoryOutsideBusinessHours AdvisoryCode = "outside_business_hours"
	AdvisoryShortNotice          AdvisoryCode = "short_notice"
	AdvisoryNoticeRecommendation AdvisoryCode = "notice_recommendation"
	AdvisoryWeekend              AdvisoryCode = "weekend"
)

// Advisory is a non-blocking notice for the requester.
type Advisory struct {
	Code    AdvisoryCode  `json:"code"`
	Level   AdvisoryLevel `json:"level"`
	Message string        `json:"message"`
}

// Advise runs the time-of-day, notice and weekend checks for window as seen at now.
func (e *Engine) Advise(window TimeWindow, now time.Time) []Advisory {
	zone := e.cfg.Zone
	local := window.In(zone)
	var out []Advisory

	day := DateOf(local.Start, zone)
	opening := AtClock(day, e.cfg.BusinessStart)
	closing := AtClock(day, e.cfg.BusinessEnd)
	if local.Start.Before(opening) || local.End.After(closing) {
		out = append(out, Advisory{
			Code:    AdvisoryOutsideBusinessHours,
			Level:   LevelSoft,
			Message: fmt.Sprintf("event runs outside business hours %s-%s", e.cfg.BusinessStart, e.cfg.BusinessEnd),
		})
	}

	notice := local.Start.Sub(now)
	switch {
	case notice < e.cfg.MinNoticeHard:
		out = append(out, Advisory{
			Code:    AdvisoryShortNotice,
			Level:   LevelBlocking,
			Message: fmt.Sprintf("event starts in %s, less than the minimum notice of %s", roundNotice(notice), roundNotice(e.cfg.MinNoticeHard)),
		})
	case notice < e.cfg.MinNoticeSoft:
		out = append(out, Advisory{
			Code:    AdvisoryNoticeRecommendation,
			Level:   LevelSoft,
			Message: fmt.Sprintf("event starts in %s, %s of notice is recommended", roundNotice(notice), roundNotice(e.cfg.MinNoticeSoft)),
		})
	}

	if isWeekend(local.Start) {
		out = append(out, Advisory{
			Code:    AdvisoryWeekend,
			Level:   LevelInfo,
			Message: fmt.Sprintf("event falls on a %s", local.Start.Weekday()),
		})
	}
	return out
}

func roundNotice(d time.Duration) string {
	if d < 0 {
		return "the past"
	}
	if d >= 24*time.Hour {
		return fmt.Sprintf("%d day(s)", int(d/(24*time.Hour)))
	}
	return d.Truncate(time.Minute).String()
}
