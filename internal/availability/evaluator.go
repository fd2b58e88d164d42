package availability

import (
	"fmt"
	"math"
	"sort"
	"strings"

	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
)

// Engine evaluates proposed events against instructor calendars. It holds no mutable state.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine; zero config fields take their defaults.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.CriticalCodes = append([]ConflictCode(nil), e.cfg.CriticalCodes...)
	return cfg
}

// InstructorInput is everything the rules need for one instructor.
type InstructorInput struct {
	Instructor     Instructor
	Window         TimeWindow
	Location       Location
	Blocks         []AvailabilityBlock
	Events         []ScheduledEvent
	ExcludeEventID string
}

// Evaluate validates req, runs every rule for each instructor and resolves the outcome.
func (e *Engine) Evaluate(req Request, snap Snapshot) (Result, error) {
	window, err := e.validate(req)
	if err != nil {
		return Result{}, err
	}

	perInstructor := make([][]Conflict, len(req.Instructors))
	var warnings []PartialEvaluationWarning
	for i, instructor := range req.Instructors {
		conflicts, warns := e.EvaluateInstructor(InstructorInput{
			Instructor:     instructor,
			Window:         window,
			Location:       req.Location,
			Blocks:         snap.BlocksFor(instructor.ID),
			Events:         snap.EventsFor(instructor.ID),
			ExcludeEventID: req.ExcludeEventID,
		})
		perInstructor[i] = conflicts
		warnings = append(warnings, warns...)
	}
	return Resolve(req.Instructors, perInstructor, warnings), nil
}

func (e *Engine) validate(req Request) (TimeWindow, error) {
	if len(req.Instructors) == 0 {
		return TimeWindow{}, appErrors.Clone(appErrors.ErrInvalidRequest, "at least one instructor is required")
	}
	seen := make(map[string]struct{}, len(req.Instructors))
	for _, instructor := range req.Instructors {
		if strings.TrimSpace(instructor.ID) == "" {
			return TimeWindow{}, appErrors.Clone(appErrors.ErrInvalidRequest, "instructor id is required")
		}
		if _, dup := seen[instructor.ID]; dup {
			return TimeWindow{}, appErrors.Clone(appErrors.ErrInvalidRequest, fmt.Sprintf("instructor %s is listed more than once", instructor.ID))
		}
		seen[instructor.ID] = struct{}{}
	}
	return e.normalizeWindow(req.Window)
}

func (e *Engine) normalizeWindow(w TimeWindow) (TimeWindow, error) {
	start, err := Normalize(w.Start, e.cfg.Zone)
	if err != nil {
		return TimeWindow{}, err
	}
	end, err := Normalize(w.End, e.cfg.Zone)
	if err != nil {
		return TimeWindow{}, err
	}
	window := TimeWindow{Start: start, End: end}
	if err := window.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return window, nil
}

// EvaluateInstructor runs the five rules for one instructor. The window must already be valid.
// Rules are independent: a failing rule is reported as a warning and the others still run.
func (e *Engine) EvaluateInstructor(in InstructorInput) ([]Conflict, []PartialEvaluationWarning) {
	in.Window = in.Window.In(e.cfg.Zone)
	ev := &instructorEvaluation{cfg: e.cfg, in: in}
	ev.prepare()

	ev.run(CodeTotalBlock, ev.totalBlocks)
	ev.run(CodePartialBlock, ev.partialBlocks)
	ev.run(CodeOverlap, ev.overlaps)
	ev.run(CodeTravelBuffer, ev.travelBuffer)
	// Capacity is only considered when nothing else fired for this instructor.
	if len(ev.conflicts) == 0 {
		ev.run(CodeDailyCapacity, ev.dailyCapacity)
	}
	return ev.conflicts, ev.warnings
}

type instructorEvaluation struct {
	cfg       Config
	in        InstructorInput
	blocks    []AvailabilityBlock
	events    []ScheduledEvent
	conflicts []Conflict
	warnings  []PartialEvaluationWarning
}

func (ev *instructorEvaluation) warn(rule ConflictCode, relatedID, reason string) {
	ev.warnings = append(ev.warnings, PartialEvaluationWarning{
		InstructorID: ev.in.Instructor.ID,
		Rule:         rule,
		RelatedID:    relatedID,
		Reason:       reason,
	})
}

// prepare keeps the blocks on the window's start date and the confirmed events of this instructor.
func (ev *instructorEvaluation) prepare() {
	zone := ev.cfg.Zone
	for _, block := range ev.in.Blocks {
		if block.InstructorID != "" && block.InstructorID != ev.in.Instructor.ID {
			continue
		}
		if !block.Date.IsZero() && !SameDate(block.Date, ev.in.Window.Start, zone) {
			continue
		}
		if err := block.check(); err != nil {
			ev.warn(blockRule(block.Kind), block.ID, err.Error())
			continue
		}
		ev.blocks = append(ev.blocks, block)
	}

	for _, event := range ev.in.Events {
		if !event.Confirmed() || !event.HasInstructor(ev.in.Instructor.ID) {
			continue
		}
		if ev.in.ExcludeEventID != "" && event.ID == ev.in.ExcludeEventID {
			continue
		}
		if err := event.Window.Validate(); err != nil {
			ev.warn(CodeOverlap, event.ID, fmt.Sprintf("event window is malformed: %v", err))
			continue
		}
		ev.events = append(ev.events, event)
	}
}

func blockRule(kind BlockKind) ConflictCode {
	if kind == BlockPartial {
		return CodePartialBlock
	}
	return CodeTotalBlock
}

func (ev *instructorEvaluation) run(rule ConflictCode, fn func() []Conflict) {
	var found []Conflict
	func() {
		defer func() {
			if r := recover(); r != nil {
				ev.warn(rule, "", fmt.Sprintf("rule aborted: %v", r))
				found = nil
			}
		}()
		found = fn()
	}()
	sort.SliceStable(found, func(i, j int) bool {
		if !found[i].OverlapStart.Equal(found[j].OverlapStart) {
			return found[i].OverlapStart.Before(found[j].OverlapStart)
		}
		return found[i].relatedID() < found[j].relatedID()
	})
	ev.conflicts = append(ev.conflicts, found...)
}

func (ev *instructorEvaluation) totalBlocks() []Conflict {
	var out []Conflict
	for i := range ev.blocks {
		block := ev.blocks[i]
		if block.Kind != BlockTotal {
			continue
		}
		span := block.Window(ev.cfg.Zone)
		if !Overlaps(ev.in.Window, span) {
			continue
		}
		out = append(out, Conflict{
			Code:         CodeTotalBlock,
			Message:      fmt.Sprintf("%s is unavailable %s%s", ev.name(), span, reasonSuffix(block.Reason)),
			Instructor:   ev.in.Instructor,
			OverlapStart: span.Start,
			OverlapEnd:   span.End,
			RelatedBlock: &block,
		})
	}
	return out
}

func (ev *instructorEvaluation) partialBlocks() []Conflict {
	var out []Conflict
	for i := range ev.blocks {
		block := ev.blocks[i]
		if block.Kind != BlockPartial {
			continue
		}
		span, ok := Intersection(ev.in.Window, block.Window(ev.cfg.Zone))
		if !ok {
			continue
		}
		out = append(out, Conflict{
			Code:         CodePartialBlock,
			Message:      fmt.Sprintf("%s is partially unavailable %s%s", ev.name(), span, reasonSuffix(block.Reason)),
			Instructor:   ev.in.Instructor,
			OverlapStart: span.Start,
			OverlapEnd:   span.End,
			RelatedBlock: &block,
		})
	}
	return out
}

func (ev *instructorEvaluation) overlaps() []Conflict {
	var out []Conflict
	for i := range ev.events {
		event := ev.events[i]
		span, ok := Intersection(ev.in.Window, event.Window)
		if !ok {
			continue
		}
		out = append(out, Conflict{
			Code:         CodeOverlap,
			Message:      fmt.Sprintf("%s is already assigned to %q at %s", ev.name(), event.Title, event.Window.In(ev.cfg.Zone)),
			Instructor:   ev.in.Instructor,
			OverlapStart: span.Start,
			OverlapEnd:   span.End,
			RelatedEvent: &event,
		})
	}
	return out
}

func (ev *instructorEvaluation) travelBuffer() []Conflict {
	buffer := ev.cfg.TravelBuffer
	required := int(buffer.Minutes())
	var out []Conflict
	for i := range ev.events {
		event := ev.events[i]
		if sameLocation(event.Location, ev.in.Location) || Overlaps(ev.in.Window, event.Window) {
			continue
		}
		gap := Gap(ev.in.Window, event.Window)
		if gap < 0 || gap >= buffer {
			continue
		}
		from, to := event.Window.End, ev.in.Window.Start
		origin, destination := event.Location, ev.in.Location
		if event.Window.Start.After(ev.in.Window.Start) {
			from, to = ev.in.Window.End, event.Window.Start
			origin, destination = ev.in.Location, event.Location
		}
		available := int(gap.Minutes())
		out = append(out, Conflict{
			Code: CodeTravelBuffer,
			Message: fmt.Sprintf("%s needs %d min to travel from %s to %s, only %d min available",
				ev.name(), required, locationName(origin), locationName(destination), available),
			Instructor:   ev.in.Instructor,
			OverlapStart: from.In(ev.cfg.Zone),
			OverlapEnd:   to.In(ev.cfg.Zone),
			RelatedEvent: &event,
			Details:      ConflictDetails{RequiredMinutes: required, GapMinutes: available},
		})
	}
	return out
}

func (ev *instructorEvaluation) dailyCapacity() []Conflict {
	total := DurationHours(ev.in.Window)
	for _, event := range ev.events {
		if SameDate(event.Window.Start, ev.in.Window.Start, ev.cfg.Zone) {
			total += DurationHours(event.Window)
		}
	}
	limit := ev.cfg.DailyHourLimit
	if total <= limit {
		return nil
	}
	total = roundHours(total)
	excess := roundHours(total - limit)
	return []Conflict{{
		Code: CodeDailyCapacity,
		Message: fmt.Sprintf("%s would work %.1fh on %s, limit is %.1fh (%.1fh over)",
			ev.name(), total, ev.in.Window.Start.Format("2006-01-02"), limit, excess),
		Instructor:   ev.in.Instructor,
		OverlapStart: ev.in.Window.Start,
		OverlapEnd:   ev.in.Window.End,
		Details:      ConflictDetails{TotalHours: total, LimitHours: limit, ExcessHours: excess},
	}}
}

func (ev *instructorEvaluation) name() string {
	if ev.in.Instructor.Name != "" {
		return ev.in.Instructor.Name
	}
	return ev.in.Instructor.ID
}

func sameLocation(a, b Location) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name))
}

func locationName(l Location) string {
	if l.Name != "" {
		return l.Name
	}
	return l.ID
}

func reasonSuffix(reason string) string {
	if reason == "" {
		return ""
	}
	return " (" + reason + ")"
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
