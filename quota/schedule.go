/*
schedule.go - Prescription duration <-> end date reconciliation

PURPOSE:
  duration = end - start in days, kept consistent bidirectionally: editing
  the duration recomputes the end date, editing the end date recomputes the
  duration. The round trip is idempotent.
*/
package quota

// EndDateFor computes the prescription end date for a start date and a
// duration in days.
func EndDateFor(start Date, durationDays int) (Date, error) {
	if durationDays < 0 {
		return Date{}, NewValidationError("duration", "duration cannot be negative")
	}
	return start.AddDays(durationDays), nil
}

// DurationFor computes the duration in days between start and end.
func DurationFor(start, end Date) (int, error) {
	if end.Before(start) {
		return 0, NewValidationError("prescription_end_date", "end date cannot be before start date")
	}
	return DaysBetween(start, end), nil
}

// ReconcileSchedule resolves a start date plus an optionally-edited duration
// or end date into a consistent (end, duration) pair:
//   - duration given, end not: end is derived from the duration
//   - end given: duration is derived from the end date (an explicit end date
//     wins when both are supplied, since the duration it implies is what the
//     record will report from then on)
//   - neither: open-ended prescription, nil end
func ReconcileSchedule(start Date, durationDays *int, end *Date) (*Date, *int, error) {
	switch {
	case end != nil:
		d, err := DurationFor(start, *end)
		if err != nil {
			return nil, nil, err
		}
		return end, &d, nil
	case durationDays != nil:
		e, err := EndDateFor(start, *durationDays)
		if err != nil {
			return nil, nil, err
		}
		return &e, durationDays, nil
	default:
		return nil, nil, nil
	}
}
