package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		cur  Status
		next Status
		ok   bool
	}{
		{"new to queued", StatusNew, StatusQueued, true},
		{"queued to contacted", StatusQueued, StatusContacted, true},
		{"contacted to replied", StatusContacted, StatusReplied, true},
		{"replied to meeting", StatusReplied, StatusMeeting, true},
		{"meeting to won", StatusMeeting, StatusWon, true},
		{"meeting to lost", StatusMeeting, StatusLost, true},
		{"skip ahead new to replied", StatusNew, StatusReplied, true},
		{"same state", StatusReplied, StatusReplied, true},
		{"replied back to contacted", StatusReplied, StatusContacted, false},
		{"replied back to queued", StatusReplied, StatusQueued, false},
		{"contacted back to new", StatusContacted, StatusNew, false},
		{"won to lost", StatusWon, StatusLost, false},
		{"unknown current", Status("Bogus"), StatusQueued, false},
		{"unknown next", StatusNew, Status("Bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.cur, tt.next))
		})
	}
}

func TestStepsValid(t *testing.T) {
	assert.True(t, StepsValid([SequenceSteps]bool{}))
	assert.True(t, StepsValid([SequenceSteps]bool{true}))
	assert.True(t, StepsValid([SequenceSteps]bool{true, true, true, true}))
	assert.False(t, StepsValid([SequenceSteps]bool{false, true}))
	assert.False(t, StepsValid([SequenceSteps]bool{true, false, true}))
}

func TestCanAdvanceSteps(t *testing.T) {
	assert.True(t, CanAdvanceSteps(
		[SequenceSteps]bool{true},
		[SequenceSteps]bool{true, true},
	))
	assert.True(t, CanAdvanceSteps(
		[SequenceSteps]bool{true, true},
		[SequenceSteps]bool{true, true},
	))
	// Clearing a sent flag is never allowed.
	assert.False(t, CanAdvanceSteps(
		[SequenceSteps]bool{true, true},
		[SequenceSteps]bool{true},
	))
	// Skipping a step is never allowed.
	assert.False(t, CanAdvanceSteps(
		[SequenceSteps]bool{true},
		[SequenceSteps]bool{true, false, true},
	))
}

func TestStepsFromCount(t *testing.T) {
	assert.Equal(t, [SequenceSteps]bool{}, StepsFromCount(0))
	assert.Equal(t, [SequenceSteps]bool{true, true}, StepsFromCount(2))
	assert.Equal(t, [SequenceSteps]bool{true, true, true, true}, StepsFromCount(9))
}

func TestSentCount(t *testing.T) {
	l := Lead{EmailSent: [SequenceSteps]bool{true, true}}
	assert.Equal(t, 2, l.SentCount())
	assert.Equal(t, 0, Lead{}.SentCount())
}
