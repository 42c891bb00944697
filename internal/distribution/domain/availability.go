package domain

import (
	"time"

	"github.com/google/uuid"
)

// DayHours is a single weekday's working window in "HH:MM" 24h local time.
type DayHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WorkingHours maps lowercase English weekday names to working windows.
// A weekday without an entry means the agent works the whole day.
type WorkingHours map[string]DayHours

// covers reports whether now falls inside the window configured for its
// weekday. Malformed windows fail open: the agent stays available.
func (w WorkingHours) covers(now time.Time) bool {
	if len(w) == 0 {
		return true
	}

	day, ok := w[weekdayKey(now.Weekday())]
	if !ok {
		return true
	}

	start, errStart := parseClock(day.Start)
	end, errEnd := parseClock(day.End)
	if errStart != nil || errEnd != nil {
		return true
	}

	minute := now.Hour()*60 + now.Minute()
	return minute >= start && minute <= end
}

// AgentAvailability is the engine's read model of one agent's availability
// settings. Created and updated by agents or admins; the resolver only reads it.
type AgentAvailability struct {
	TenantID       uuid.UUID
	AgentID        uuid.UUID
	IsActive       bool
	IsPaused       bool
	PauseUntil     *time.Time
	MaxCapacity    int
	PriorityWeight int
	WorkingHours   WorkingHours
	CurrentLoad    int
}

// AvailableAt applies the pause, pause-expiry, working-hours and capacity
// checks against the given wall-clock time. An open-ended pause blocks until
// an explicit resume; a timed pause expires on its own once pause_until
// passes.
func (a AgentAvailability) AvailableAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.IsPaused && a.PauseUntil == nil {
		return false
	}
	if a.PauseUntil != nil && a.PauseUntil.After(now) {
		return false
	}
	if !a.WorkingHours.covers(now) {
		return false
	}
	return a.CurrentLoad < a.MaxCapacity
}

// Candidate is an agent that survived availability filtering.
type Candidate struct {
	AgentID        uuid.UUID
	PriorityWeight int
	CurrentLoad    int
	MaxCapacity    int
}

func weekdayKey(day time.Weekday) string {
	switch day {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

func parseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
