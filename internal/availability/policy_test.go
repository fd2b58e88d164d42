package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conflictsWith(codes ...ConflictCode) []Conflict {
	out := make([]Conflict, 0, len(codes))
	for _, code := range codes {
		out = append(out, Conflict{Code: code})
	}
	return out
}

func TestPriorityCode(t *testing.T) {
	cases := []struct {
		name  string
		codes []ConflictCode
		want  ResultCode
	}{
		{name: "none", want: ResultClear},
		{name: "travel beats capacity", codes: []ConflictCode{CodeDailyCapacity, CodeTravelBuffer}, want: "D"},
		{name: "partial beats overlap", codes: []ConflictCode{CodeOverlap, CodePartialBlock}, want: "P"},
		{name: "total beats everything", codes: []ConflictCode{CodeDailyCapacity, CodeOverlap, CodeTotalBlock, CodePartialBlock}, want: "T"},
		{name: "single overlap", codes: []ConflictCode{CodeOverlap}, want: "X"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PriorityCode(conflictsWith(tc.codes...)))
		})
	}
}

func TestResolveRollsUpPerInstructor(t *testing.T) {
	carla := Instructor{ID: "inst-carla", Name: "Carla Mendes"}
	result := Resolve(
		[]Instructor{ana, bruno, carla},
		[][]Conflict{
			conflictsWith(CodeTotalBlock, CodeOverlap),
			nil,
			conflictsWith(CodeOverlap, CodeOverlap),
		},
		nil,
	)

	assert.False(t, result.Available)
	assert.Equal(t, ResultCode("T"), result.Code)
	assert.Len(t, result.Conflicts, 4)
	assert.Equal(t, []ConflictCode{CodeTotalBlock, CodeOverlap}, result.Codes())
	assert.Equal(t, 2, result.UnavailableCount())

	require.Len(t, result.Instructors, 3)
	assert.Equal(t, []ConflictCode{CodeTotalBlock, CodeOverlap}, result.Instructors[0].Codes)
	assert.True(t, result.Instructors[1].Available)
	assert.Equal(t, []ConflictCode{CodeOverlap}, result.Instructors[2].Codes)

	assert.Contains(t, result.Summary, "total block [T]: 1 instructor(s)")
	assert.Contains(t, result.Summary, "overlapping event [X]: 2 instructor(s)")
	assert.Contains(t, result.Summary, "1 of 3 instructor(s) available")
}

func TestResolveAllClear(t *testing.T) {
	result := Resolve([]Instructor{ana, bruno}, [][]Conflict{nil, nil}, nil)

	assert.True(t, result.Available)
	assert.Equal(t, ResultClear, result.Code)
	assert.NotNil(t, result.Conflicts)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, "all 2 instructor(s) available", result.Summary)
}

func TestCriticalPolicy(t *testing.T) {
	cfg := DefaultConfig(testZone)

	assert.True(t, cfg.IsCritical(CodeTotalBlock))
	assert.True(t, cfg.IsCritical(CodeOverlap))
	assert.False(t, cfg.IsCritical(CodePartialBlock))

	soft := Result{Conflicts: conflictsWith(CodePartialBlock, CodeTravelBuffer, CodeDailyCapacity)}
	assert.True(t, cfg.AllowsCreation(soft))

	hard := Result{Conflicts: conflictsWith(CodePartialBlock, CodeOverlap)}
	assert.False(t, cfg.AllowsCreation(hard))
	assert.Len(t, cfg.BlockingConflicts(hard), 1)
}

func TestParseConflictCode(t *testing.T) {
	code, err := ParseConflictCode("D")
	require.NoError(t, err)
	assert.Equal(t, CodeTravelBuffer, code)

	_, err = ParseConflictCode("Z")
	assert.Error(t, err)
}
