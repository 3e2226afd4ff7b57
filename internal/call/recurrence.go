package call

import (
	"time"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// RecurrenceRule describes how a scheduled call repeats.
type RecurrenceRule struct {
	Frequency string         `json:"frequency"`
	Interval  int            `json:"interval"`
	EndDate   *time.Time     `json:"end_date"`
	Weekdays  []time.Weekday `json:"weekdays"`
}

// ReminderRule configures the single reminder derived from a scheduled call.
type ReminderRule struct {
	MinutesBefore int    `json:"minutes_before"`
	Method        string `json:"method"`
}

// NextOccurrence computes the occurrence after current, in the rule's local
// zone so wall-clock time survives DST shifts. It returns false when the
// recurrence is exhausted. With a weekday set the next listed weekday
// strictly after current wins and the interval is not applied.
func (r RecurrenceRule) NextOccurrence(current time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}

	interval := r.Interval
	if interval <= 0 {
		interval = 1
	}

	local := current.In(loc)

	var next time.Time

	switch r.Frequency {
	case FrequencyDaily:
		next = local.AddDate(0, 0, interval)
	case FrequencyWeekly:
		if len(r.Weekdays) > 0 {
			next = nextListedWeekday(local, r.Weekdays)
		} else {
			next = local.AddDate(0, 0, 7*interval)
		}
	case FrequencyMonthly:
		next = local.AddDate(0, interval, 0)
	default:
		return time.Time{}, false
	}

	nextUTC := next.UTC()

	if r.EndDate != nil && nextUTC.After(r.EndDate.UTC()) {
		return time.Time{}, false
	}

	return nextUTC, true
}

func nextListedWeekday(local time.Time, weekdays []time.Weekday) time.Time {
	listed := make(map[time.Weekday]bool, len(weekdays))
	for _, day := range weekdays {
		listed[day] = true
	}

	candidate := local
	for range 7 {
		candidate = candidate.AddDate(0, 0, 1)
		if listed[candidate.Weekday()] {
			return candidate
		}
	}

	// Weekday set was empty or invalid; behave like a plain weekly rule.
	return local.AddDate(0, 0, 7)
}
