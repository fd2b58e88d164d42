package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

// CalendarEntry is one VEVENT.
type CalendarEntry struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	// Tentative marks entries that are proposals rather than booked events.
	Tentative bool
}

// ICSExporter renders entries as an RFC 5545 calendar.
type ICSExporter struct {
	productID string
}

// NewICSExporter builds an exporter stamping productID into PRODID.
func NewICSExporter(productID string) *ICSExporter {
	if productID == "" {
		productID = "-//formador-scheduler//EN"
	}
	return &ICSExporter{productID: productID}
}

// ContentType is the MIME type of the rendered output.
func (e *ICSExporter) ContentType() string {
	return "text/calendar; charset=utf-8"
}

// Render serialises entries into a calendar named name. stamp is written as DTSTAMP.
func (e *ICSExporter) Render(name string, entries []CalendarEntry, stamp time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for i, entry := range entries {
		if entry.UID == "" {
			return nil, fmt.Errorf("calendar entry %d has no uid", i)
		}
		if !entry.End.After(entry.Start) {
			return nil, fmt.Errorf("calendar entry %s ends before it starts", entry.UID)
		}
		event := cal.AddEvent(entry.UID)
		event.SetDtStampTime(stamp.UTC())
		event.SetStartAt(entry.Start.UTC())
		event.SetEndAt(entry.End.UTC())
		event.SetSummary(entry.Summary)
		if entry.Description != "" {
			event.SetDescription(entry.Description)
		}
		if entry.Location != "" {
			event.SetLocation(entry.Location)
		}
		if entry.Tentative {
			event.SetProperty(ical.ComponentPropertyStatus, "TENTATIVE")
		}
	}
	return []byte(cal.Serialize()), nil
}
