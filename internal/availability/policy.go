package availability

import (
	"fmt"
	"strings"
)

// Resolve merges per-instructor conflicts into one Result. perInstructor[i] belongs to instructors[i].
func Resolve(instructors []Instructor, perInstructor [][]Conflict, warnings []PartialEvaluationWarning) Result {
	result := Result{
		Conflicts:   []Conflict{},
		Instructors: make([]InstructorOutcome, 0, len(instructors)),
		Warnings:    warnings,
	}
	for i, instructor := range instructors {
		var conflicts []Conflict
		if i < len(perInstructor) {
			conflicts = perInstructor[i]
		}
		result.Conflicts = append(result.Conflicts, conflicts...)
		result.Instructors = append(result.Instructors, InstructorOutcome{
			Instructor: instructor,
			Available:  len(conflicts) == 0,
			Codes:      distinctCodes(conflicts),
		})
	}
	result.Available = len(result.Conflicts) == 0
	result.Code = PriorityCode(result.Conflicts)
	result.Summary = summarize(result)
	return result
}

// PriorityCode picks the most severe code present: T > P > X > D > M, or E when there is none.
func PriorityCode(conflicts []Conflict) ResultCode {
	best := ResultClear
	bestRank := len(ConflictCodes)
	for _, c := range conflicts {
		rank := c.Code.Priority()
		if rank < bestRank {
			bestRank = rank
			best = ResultFor(c.Code)
		}
	}
	return best
}

func distinctCodes(conflicts []Conflict) []ConflictCode {
	if len(conflicts) == 0 {
		return nil
	}
	present := make(map[ConflictCode]bool, len(ConflictCodes))
	for _, c := range conflicts {
		present[c.Code] = true
	}
	var out []ConflictCode
	for _, code := range ConflictCodes {
		if present[code] {
			out = append(out, code)
		}
	}
	return out
}

func summarize(r Result) string {
	total := len(r.Instructors)
	if r.Available {
		return fmt.Sprintf("all %d instructor(s) available", total)
	}

	parts := make([]string, 0, len(ConflictCodes)+1)
	for _, code := range ConflictCodes {
		n := 0
		for _, outcome := range r.Instructors {
			for _, c := range outcome.Codes {
				if c == code {
					n++
					break
				}
			}
		}
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s [%s]: %d instructor(s)", code.Label(), code, n))
		}
	}
	available := total - r.UnavailableCount()
	parts = append(parts, fmt.Sprintf("%d of %d instructor(s) available", available, total))
	return strings.Join(parts, "; ")
}
