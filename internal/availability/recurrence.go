package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const maxOccurrencesPerBlock = 400

// RecurringBlock is a block template repeated by an RFC 5545 RRULE, e.g. "FREQ=WEEKLY;BYDAY=MO".
// The template's Date is the first occurrence.
type RecurringBlock struct {
	Block AvailabilityBlock
	RRule string
}

// ExpandBlocks materialises recurring blocks into dated blocks whose date falls in [from, to].
// Templates with an unparsable rule are skipped and reported.
func ExpandBlocks(templates []RecurringBlock, from, to time.Time, zone *time.Location) ([]AvailabilityBlock, []PartialEvaluationWarning) {
	var (
		out      []AvailabilityBlock
		warnings []PartialEvaluationWarning
	)
	rangeStart := DateOf(from, zone)
	rangeEnd := DateOf(to, zone)

	for _, tpl := range templates {
		raw := strings.TrimPrefix(strings.TrimSpace(tpl.RRule), "RRULE:")
		if raw == "" {
			out = append(out, tpl.Block)
			continue
		}
		rule, err := rrule.StrToRRule(raw)
		if err != nil {
			warnings = append(warnings, recurrenceWarning(tpl.Block, fmt.Sprintf("invalid recurrence %q: %v", tpl.RRule, err)))
			continue
		}
		if tpl.Block.Date.IsZero() {
			warnings = append(warnings, recurrenceWarning(tpl.Block, "recurring block has no start date"))
			continue
		}
		rule.DTStart(DateOf(tpl.Block.Date, zone))

		occurrences := rule.Between(rangeStart, rangeEnd, true)
		if len(occurrences) > maxOccurrencesPerBlock {
			occurrences = occurrences[:maxOccurrencesPerBlock]
			warnings = append(warnings, recurrenceWarning(tpl.Block, fmt.Sprintf("recurrence truncated to %d occurrences", maxOccurrencesPerBlock)))
		}
		for _, occ := range occurrences {
			block := tpl.Block
			block.Date = DateOf(occ, zone)
			block.ID = fmt.Sprintf("%s@%s", tpl.Block.ID, block.Date.Format("2006-01-02"))
			out = append(out, block)
		}
	}
	return out, warnings
}

func recurrenceWarning(block AvailabilityBlock, reason string) PartialEvaluationWarning {
	rule := CodeTotalBlock
	if block.Kind == BlockPartial {
		rule = CodePartialBlock
	}
	return PartialEvaluationWarning{InstructorID: block.InstructorID, Rule: rule, RelatedID: block.ID, Reason: reason}
}
