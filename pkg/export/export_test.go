package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "Availability March 2025",
		Headers: []string{"Instructor", "01", "02", "03"},
		Rows: [][]string{
			{"Ana Costa", "", "T", "E"},
			{"Bruno Reis", "P"},
		},
		Footer: []string{"T = total block", "P = partial block"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleTable())
	require.NoError(t, err)

	reader := csv.NewReader(bytes.NewReader(out))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(records), 3)
	assert.Equal(t, []string{"Instructor", "01", "02", "03"}, records[0])
	assert.Equal(t, []string{"Ana Costa", "", "T", "E"}, records[1])
	assert.Equal(t, []string{"Bruno Reis", "P", "", ""}, records[2], "short rows are padded")
	assert.Contains(t, string(out), "T = total block")
}

func TestCSVExporterValidates(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{})
	assert.Error(t, err)

	_, err = NewCSVExporter().Render(Table{Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	fill := func(value string) (RGB, bool) {
		if value == "T" {
			return RGB{R: 230, G: 80, B: 80}, true
		}
		return RGB{}, false
	}
	out, err := NewPDFExporter(fill).Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	wide := Table{Headers: make([]string, 32)}
	for i := range wide.Headers {
		wide.Headers[i] = "c"
	}
	out, err = NewPDFExporter(nil).Render(wide)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths(4, 190)
	assert.Equal(t, pdfLabelWidthMM, widths[0])
	assert.InDelta(t, (190-pdfLabelWidthMM)/3, widths[1], 0.001)
	assert.Equal(t, []float64{190}, columnWidths(1, 190))
}

func TestICSExporterRender(t *testing.T) {
	zone := time.FixedZone("WET", 0)
	entries := []CalendarEntry{
		{
			UID:       "slot-1@formador-scheduler",
			Summary:   "Suggested slot",
			Location:  "Lisboa",
			Start:     time.Date(2025, time.March, 11, 9, 0, 0, 0, zone),
			End:       time.Date(2025, time.March, 11, 11, 0, 0, 0, zone),
			Tentative: true,
		},
	}
	out, err := NewICSExporter("").Render("Suggestions", entries, time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(strings.NewReader(string(out)))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Suggested slot", events[0].GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "TENTATIVE", events[0].GetProperty(ical.ComponentPropertyStatus).Value)
	assert.Contains(t, string(out), "DTSTART:20250311T090000Z")

	_, err = NewICSExporter("").Render("bad", []CalendarEntry{{UID: "x", Start: entries[0].End, End: entries[0].Start}}, time.Now())
	assert.Error(t, err)
}
