package availability

import (
	"fmt"
	"time"
)

// ConflictCode classifies why an instructor cannot take a proposed window.
type ConflictCode string

const (
	CodeTotalBlock    ConflictCode = "T"
	CodePartialBlock  ConflictCode = "P"
	CodeOverlap       ConflictCode = "X"
	CodeTravelBuffer  ConflictCode = "D"
	CodeDailyCapacity ConflictCode = "M"
)

// ConflictCodes lists every code from highest to lowest priority.
var ConflictCodes = []ConflictCode{CodeTotalBlock, CodePartialBlock, CodeOverlap, CodeTravelBuffer, CodeDailyCapacity}

// Priority ranks codes; lower is more severe.
func (c ConflictCode) Priority() int {
	switch c {
	case CodeTotalBlock:
		return 0
	case CodePartialBlock:
		return 1
	case CodeOverlap:
		return 2
	case CodeTravelBuffer:
		return 3
	case CodeDailyCapacity:
		return 4
	default:
		return len(ConflictCodes)
	}
}

// Label returns a short human description of the code.
func (c ConflictCode) Label() string {
	switch c {
	case CodeTotalBlock:
		return "total block"
	case CodePartialBlock:
		return "partial block"
	case CodeOverlap:
		return "overlapping event"
	case CodeTravelBuffer:
		return "insufficient travel time"
	case CodeDailyCapacity:
		return "daily hour limit exceeded"
	default:
		return "unknown"
	}
}

// Valid reports whether c is one of the known codes.
func (c ConflictCode) Valid() bool {
	return c.Priority() < len(ConflictCodes)
}

// ParseConflictCode converts the single-letter wire form into a code.
func ParseConflictCode(raw string) (ConflictCode, error) {
	code := ConflictCode(raw)
	if !code.Valid() {
		return "", fmt.Errorf("unknown conflict code %q", raw)
	}
	return code, nil
}

// ResultCode is the overall outcome of an evaluation: a conflict code or ResultClear.
type ResultCode string

// ResultClear means no instructor produced a conflict.
const ResultClear ResultCode = "E"

// ResultFor lifts a conflict code into a result code.
func ResultFor(code ConflictCode) ResultCode {
	return ResultCode(code)
}

// BlockKind distinguishes full from partial unavailability.
type BlockKind string

const (
	BlockTotal   BlockKind = "total"
	BlockPartial BlockKind = "partial"
)

// Valid reports whether k is a known kind.
func (k BlockKind) Valid() bool {
	return k == BlockTotal || k == BlockPartial
}

// EventStatus is the lifecycle state of a scheduled event or request.
type EventStatus string

const (
	StatusPending   EventStatus = "pending"
	StatusApproved  EventStatus = "approved"
	StatusConfirmed EventStatus = "confirmed"
	StatusRejected  EventStatus = "rejected"
	StatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Instructor identifies a formador.
type Instructor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Location identifies where an event takes place.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AvailabilityBlock is a declared unavailability on one calendar date.
type AvailabilityBlock struct {
	ID           string    `json:"id"`
	InstructorID string    `json:"instructor_id"`
	Date         time.Time `json:"date"`
	StartTime    ClockTime `json:"start_time"`
	EndTime      ClockTime `json:"end_time"`
	Kind         BlockKind `json:"kind"`
	Reason       string    `json:"reason,omitempty"`
}

// Window places the block's clock range on its date in zone.
func (b AvailabilityBlock) Window(zone *time.Location) TimeWindow {
	date := DateOf(b.Date, zone)
	return TimeWindow{Start: AtClock(date, b.StartTime), End: AtClock(date, b.EndTime)}
}

func (b AvailabilityBlock) check() error {
	if !b.Kind.Valid() {
		return fmt.Errorf("unknown block kind %q", b.Kind)
	}
	if b.Date.IsZero() {
		return fmt.Errorf("block has no date")
	}
	if !b.StartTime.Valid() || !b.EndTime.Valid() {
		return fmt.Errorf("block clock range %s-%s is out of bounds", b.StartTime, b.EndTime)
	}
	if b.EndTime.Minutes() <= b.StartTime.Minutes() {
		return fmt.Errorf("block end %s is not after start %s", b.EndTime, b.StartTime)
	}
	return nil
}

// ScheduledEvent is an event already known to the calendar.
type ScheduledEvent struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	InstructorIDs []string    `json:"instructor_ids"`
	Window        TimeWindow  `json:"window"`
	Location      Location    `json:"location"`
	Status        EventStatus `json:"status"`
}

// HasInstructor reports whether id is assigned to the event.
func (e ScheduledEvent) HasInstructor(id string) bool {
	for _, candidate := range e.InstructorIDs {
		if candidate == id {
			return true
		}
	}
	return false
}

// Confirmed reports whether the event takes part in conflict checks.
func (e ScheduledEvent) Confirmed() bool {
	return e.Status == StatusConfirmed
}

// ConflictDetails carries the numbers behind D and M conflicts.
type ConflictDetails struct {
	RequiredMinutes int     `json:"required_minutes,omitempty"`
	GapMinutes      int     `json:"gap_minutes,omitempty"`
	TotalHours      float64 `json:"total_hours,omitempty"`
	LimitHours      float64 `json:"limit_hours,omitempty"`
	ExcessHours     float64 `json:"excess_hours,omitempty"`
}

// Conflict is one reason an instructor cannot take the proposed window.
// At most one of RelatedBlock and RelatedEvent is set; capacity conflicts set neither.
type Conflict struct {
	Code         ConflictCode       `json:"code"`
	Message      string             `json:"message"`
	Instructor   Instructor         `json:"instructor"`
	OverlapStart time.Time          `json:"overlap_start"`
	OverlapEnd   time.Time          `json:"overlap_end"`
	RelatedBlock *AvailabilityBlock `json:"related_block,omitempty"`
	RelatedEvent *ScheduledEvent    `json:"related_event,omitempty"`
	Details      ConflictDetails    `json:"details"`
}

func (c Conflict) relatedID() string {
	switch {
	case c.RelatedBlock != nil:
		return c.RelatedBlock.ID
	case c.RelatedEvent != nil:
		return c.RelatedEvent.ID
	default:
		return ""
	}
}

// PartialEvaluationWarning reports input a rule had to skip.
type PartialEvaluationWarning struct {
	InstructorID string       `json:"instructor_id"`
	Rule         ConflictCode `json:"rule"`
	RelatedID    string       `json:"related_id,omitempty"`
	Reason       string       `json:"reason"`
}

// InstructorOutcome rolls up the conflicts of one requested instructor.
type InstructorOutcome struct {
	Instructor Instructor     `json:"instructor"`
	Available  bool           `json:"available"`
	Codes      []ConflictCode `json:"codes,omitempty"`
}

// Result is the engine's answer for a proposed event.
type Result struct {
	Available   bool                       `json:"available"`
	Code        ResultCode                 `json:"code"`
	Conflicts   []Conflict                 `json:"conflicts"`
	Summary     string                     `json:"summary"`
	Instructors []InstructorOutcome        `json:"instructors"`
	Warnings    []PartialEvaluationWarning `json:"warnings,omitempty"`
}

// Codes returns the distinct conflict codes present, in priority order.
func (r Result) Codes() []ConflictCode {
	seen := make(map[ConflictCode]bool, len(ConflictCodes))
	for _, c := range r.Conflicts {
		seen[c.Code] = true
	}
	var out []ConflictCode
	for _, code := range ConflictCodes {
		if seen[code] {
			out = append(out, code)
		}
	}
	return out
}

// UnavailableCount returns how many requested instructors have at least one conflict.
func (r Result) UnavailableCount() int {
	n := 0
	for _, o := range r.Instructors {
		if !o.Available {
			n++
		}
	}
	return n
}

// Request is a proposed event to evaluate.
type Request struct {
	Instructors    []Instructor `json:"instructors"`
	Window         TimeWindow   `json:"window"`
	Location       Location     `json:"location"`
	ExcludeEventID string       `json:"exclude_event_id,omitempty"`
}

// Snapshot holds the already-fetched blocks and events the engine reads, keyed by instructor id.
// It may contain more than needed; the engine filters exactly.
type Snapshot struct {
	Blocks map[string][]AvailabilityBlock
	Events map[string][]ScheduledEvent
}

// NewSnapshot builds a snapshot from flat collections. Events are indexed under every assigned instructor.
func NewSnapshot(blocks []AvailabilityBlock, events []ScheduledEvent) Snapshot {
	snap := Snapshot{
		Blocks: make(map[string][]AvailabilityBlock),
		Events: make(map[string][]ScheduledEvent),
	}
	for _, b := range blocks {
		snap.Blocks[b.InstructorID] = append(snap.Blocks[b.InstructorID], b)
	}
	for _, e := range events {
		for _, id := range e.InstructorIDs {
			snap.Events[id] = append(snap.Events[id], e)
		}
	}
	return snap
}

// BlocksFor returns blocks for an instructor, nil when none are known.
func (s Snapshot) BlocksFor(instructorID string) []AvailabilityBlock {
	if s.Blocks == nil {
		return nil
	}
	return s.Blocks[instructorID]
}

// EventsFor returns events for an instructor, nil when none are known.
func (s Snapshot) EventsFor(instructorID string) []ScheduledEvent {
	if s.Events == nil {
		return nil
	}
	return s.Events[instructorID]
}
