package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionAvailabilityCheck   = "AVAILABILITY_CHECK"
	AuditActionAvailabilitySuggest = "AVAILABILITY_SUGGEST"
	AuditActionEventRequestCreate  = "EVENT_REQUEST_CREATE"
	AuditActionEventRequestRefused = "EVENT_REQUEST_REFUSED"
)

// Audit resources.
const (
	AuditResourceAvailability = "availability"
	AuditResourceEventRequest = "event_request"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Payload    []byte    `db:"payload" json:"payload,omitempty"`
	RequestID  string    `db:"request_id" json:"request_id"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AvailabilityDecision is the payload recorded for every validation and creation.
type AvailabilityDecision struct {
	InstructorIDs  []string  `json:"instructor_ids"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	LocationID     string    `json:"location_id"`
	Code           string    `json:"code"`
	Available      bool      `json:"available"`
	CanCreate      bool      `json:"can_create"`
	ConflictCount  int       `json:"conflict_count"`
	AdvisoryCodes  []string  `json:"advisory_codes,omitempty"`
	WarningCount   int       `json:"warning_count,omitempty"`
	EventRequestID string    `json:"event_request_id,omitempty"`
}
