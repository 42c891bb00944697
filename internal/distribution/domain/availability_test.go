package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// Tuesday 10:30 local time.
var tuesdayMorning = time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)

func baseAvailability() AgentAvailability {
	return AgentAvailability{
		TenantID:       uuid.New(),
		AgentID:        uuid.New(),
		IsActive:       true,
		MaxCapacity:    10,
		PriorityWeight: 1,
	}
}

func TestAvailableAtRejectsInactiveAndPausedAgents(t *testing.T) {
	inactive := baseAvailability()
	inactive.IsActive = false
	if inactive.AvailableAt(tuesdayMorning) {
		t.Fatal("inactive agent must not be available")
	}

	paused := baseAvailability()
	paused.IsPaused = true
	if paused.AvailableAt(tuesdayMorning) {
		t.Fatal("agent under an open-ended pause must not be available")
	}
}

func TestAvailableAtHonorsPauseExpiry(t *testing.T) {
	// A timed pause stores is_paused together with pause_until; it must block
	// while pause_until is in the future and expire on its own afterwards,
	// without an explicit resume.
	row := baseAvailability()
	row.IsPaused = true

	future := tuesdayMorning.Add(time.Hour)
	row.PauseUntil = &future
	if row.AvailableAt(tuesdayMorning) {
		t.Fatal("agent paused until a future time must not be available")
	}

	past := tuesdayMorning.Add(-time.Hour)
	row.PauseUntil = &past
	if !row.AvailableAt(tuesdayMorning) {
		t.Fatal("agent must become selectable again once pause_until elapses")
	}

	// A future pause_until also blocks a not-yet-flagged row (scheduled pause).
	scheduled := baseAvailability()
	scheduled.PauseUntil = &future
	if scheduled.AvailableAt(tuesdayMorning) {
		t.Fatal("a scheduled pause must block before is_paused is set")
	}
}

func TestAvailableAtChecksWorkingHoursInclusive(t *testing.T) {
	row := baseAvailability()
	row.WorkingHours = WorkingHours{
		"tuesday": {Start: "09:00", End: "18:00"},
	}

	if !row.AvailableAt(tuesdayMorning) {
		t.Fatal("10:30 inside 09:00-18:00 must be available")
	}

	atOpen := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if !row.AvailableAt(atOpen) {
		t.Fatal("window start is inclusive")
	}

	atClose := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	if !row.AvailableAt(atClose) {
		t.Fatal("window end is inclusive")
	}

	evening := time.Date(2026, 3, 10, 18, 1, 0, 0, time.UTC)
	if row.AvailableAt(evening) {
		t.Fatal("18:01 outside the window must not be available")
	}
}

func TestAvailableAtTreatsMissingWeekdayAsFullDay(t *testing.T) {
	row := baseAvailability()
	row.WorkingHours = WorkingHours{
		"monday": {Start: "09:00", End: "18:00"},
	}

	midnight := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)
	if !row.AvailableAt(midnight) {
		t.Fatal("weekday without an entry means the agent works the whole day")
	}
}

func TestAvailableAtFailsOpenOnMalformedWindow(t *testing.T) {
	row := baseAvailability()
	row.WorkingHours = WorkingHours{
		"tuesday": {Start: "9am", End: "six"},
	}

	if !row.AvailableAt(tuesdayMorning) {
		t.Fatal("malformed working hours must not block availability")
	}
}

func TestAvailableAtEnforcesCapacity(t *testing.T) {
	row := baseAvailability()
	row.MaxCapacity = 3

	row.CurrentLoad = 2
	if !row.AvailableAt(tuesdayMorning) {
		t.Fatal("load below capacity must be available")
	}

	row.CurrentLoad = 3
	if row.AvailableAt(tuesdayMorning) {
		t.Fatal("load at capacity must not be available")
	}
}
