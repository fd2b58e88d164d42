package availability

import (
	"sort"
	"time"
)

// DayStatus classifies one instructor-day in the monthly matrix.
type DayStatus string

const (
	DayAvailable      DayStatus = ""
	DayTotalBlock     DayStatus = "T"
	DayPartialBlock   DayStatus = "P"
	DaySingleEvent    DayStatus = "E"
	DayMultipleEvents DayStatus = "M"
	DayOverlapping    DayStatus = "X"
)

// DayStatuses lists every status in display order.
var DayStatuses = []DayStatus{DayAvailable, DaySingleEvent, DayMultipleEvents, DayOverlapping, DayPartialBlock, DayTotalBlock}

// MatrixCell is one instructor-day.
type MatrixCell struct {
	Date       time.Time `json:"date"`
	Status     DayStatus `json:"status"`
	EventCount int       `json:"event_count"`
}

// MatrixRow is one instructor across the month.
type MatrixRow struct {
	Instructor Instructor   `json:"instructor"`
	Cells      []MatrixCell `json:"cells"`
}

// MonthlyMatrix is the per-instructor, per-day availability grid for a month.
type MonthlyMatrix struct {
	Year   int               `json:"year"`
	Month  time.Month        `json:"month"`
	Days   []time.Time       `json:"days"`
	Rows   []MatrixRow       `json:"rows"`
	Legend map[DayStatus]int `json:"legend"`
	// Warnings lists blocks and records that could not be placed on the grid.
	Warnings []PartialEvaluationWarning `json:"warnings,omitempty"`
}

// MonthDays returns midnight of every day of the month in zone.
func MonthDays(year int, month time.Month, zone *time.Location) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, zone)
	var days []time.Time
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// MonthlyMatrix classifies every day of the month for each instructor. This is a date-scoped
// presence check: it ignores travel buffers and hour totals.
func (e *Engine) MonthlyMatrix(year int, month time.Month, instructors []Instructor, snap Snapshot) MonthlyMatrix {
	zone := e.cfg.Zone
	days := MonthDays(year, month, zone)
	matrix := MonthlyMatrix{
		Year:   year,
		Month:  month,
		Days:   days,
		Rows:   make([]MatrixRow, 0, len(instructors)),
		Legend: make(map[DayStatus]int, len(DayStatuses)),
	}
	for _, instructor := range instructors {
		row := MatrixRow{Instructor: instructor, Cells: make([]MatrixCell, 0, len(days))}
		blocks := snap.BlocksFor(instructor.ID)
		events := snap.EventsFor(instructor.ID)
		for _, block := range blocks {
			if err := block.check(); err != nil {
				matrix.Warnings = append(matrix.Warnings, PartialEvaluationWarning{
					InstructorID: instructor.ID,
					Rule:         blockRule(block.Kind),
					RelatedID:    block.ID,
					Reason:       err.Error(),
				})
			}
		}
		for _, day := range days {
			cell := e.classifyDay(instructor.ID, day, blocks, events)
			matrix.Legend[cell.Status]++
			row.Cells = append(row.Cells, cell)
		}
		matrix.Rows = append(matrix.Rows, row)
	}
	return matrix
}

func (e *Engine) classifyDay(instructorID string, day time.Time, blocks []AvailabilityBlock, events []ScheduledEvent) MatrixCell {
	zone := e.cfg.Zone
	cell := MatrixCell{Date: day}

	hasTotal, hasPartial := false, false
	for _, block := range blocks {
		if block.check() != nil || !SameDate(block.Date, day, zone) {
			continue
		}
		switch block.Kind {
		case BlockTotal:
			hasTotal = true
		case BlockPartial:
			hasPartial = true
		}
	}

	var windows []TimeWindow
	for _, event := range events {
		if !event.Confirmed() || !event.HasInstructor(instructorID) {
			continue
		}
		if event.Window.Validate() != nil || !SameDate(event.Window.Start, day, zone) {
			continue
		}
		windows = append(windows, event.Window)
	}
	cell.EventCount = len(windows)

	switch {
	case hasTotal:
		cell.Status = DayTotalBlock
	case hasPartial:
		cell.Status = DayPartialBlock
	case len(windows) == 0:
		cell.Status = DayAvailable
	case len(windows) == 1:
		cell.Status = DaySingleEvent
	case anyOverlap(windows):
		cell.Status = DayOverlapping
	default:
		cell.Status = DayMultipleEvents
	}
	return cell
}

func anyOverlap(windows []TimeWindow) bool {
	sorted := append([]TimeWindow(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	latestEnd := sorted[0].End
	for _, w := range sorted[1:] {
		if w.Start.Before(latestEnd) {
			return true
		}
		if w.End.After(latestEnd) {
			latestEnd = w.End
		}
	}
	return false
}
