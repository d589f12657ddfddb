package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type (
	// TimeOfDay is a wall-clock time in 24h format.
	TimeOfDay struct {
		Hour   int
		Minute int
	}

	// Schedule determines when a Session takes place. It is a closed
	// variant: either a OneOff or a Weekly recurrence. The schedule is
	// the single source of truth for the session's effective start;
	// there is no separate stored timestamp to drift from it.
	Schedule interface {
		// Occurrence returns the start of the occurrence governing `now`:
		// a OneOff's fixed start, or the most recent weekly occurrence at
		// or before `now`.
		Occurrence(now time.Time) time.Time
		isSchedule()
	}

	OneOff struct {
		StartAt time.Time `json:"start_at"` // UTC
	}

	Weekly struct {
		Day       time.Weekday `json:"day"`
		TimeOfDay TimeOfDay    `json:"time_of_day"`
	}

	Session struct {
		ID        string        `json:"id"`
		CourseID  string        `json:"course_id"`
		Title     string        `json:"title"`
		Schedule  Schedule      `json:"schedule"`
		Duration  time.Duration `json:"duration"`
		CreatedBy string        `json:"created_by"`
		CreatedAt time.Time     `json:"created_at"` // UTC
	}
)

func (OneOff) isSchedule() {}
func (Weekly) isSchedule() {}

func (o OneOff) Occurrence(time.Time) time.Time { return o.StartAt }

func (w Weekly) Occurrence(now time.Time) time.Time {
	daysBack := int(now.Weekday()-w.Day+7) % 7
	day := now.AddDate(0, 0, -daysBack)
	occ := time.Date(day.Year(), day.Month(), day.Day(), w.TimeOfDay.Hour, w.TimeOfDay.Minute, 0, 0, now.Location())
	if occ.After(now) {
		occ = occ.AddDate(0, 0, -7)
	}
	return occ
}

// IsActive reports whether `now` falls within the session's active
// window, boundaries included at both ends.
func (s Session) IsActive(now time.Time) bool {
	start := s.Schedule.Occurrence(now)
	return !now.Before(start) && !now.After(start.Add(s.Duration))
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses a 24h "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	Title           string     `json:"title" validate:"required"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,gt=0"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	Recurring       bool       `json:"recurring"`
	DayOfWeek       *int       `json:"day_of_week" validate:"omitempty,gte=0,lte=6"`
	TimeOfDay       string     `json:"time_of_day" validate:"omitempty,timeofday"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	if err := validate.Struct(ns); err != nil {
		return err
	}

	if ns.Recurring {
		if ns.DayOfWeek == nil {
			return core.NewValidationError(nil, core.FieldError{Field: "day_of_week", Error: "required for a recurring session"})
		}
		if ns.TimeOfDay == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "time_of_day", Error: "required for a recurring session"})
		}
	} else if ns.ScheduledAt == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "scheduled_at", Error: "required for a one-off session"})
	}
	return nil
}

// schedule builds the Schedule variant described by the request.
func (ns NewSession) schedule() (Schedule, error) {
	if ns.Recurring {
		tod, err := ParseTimeOfDay(ns.TimeOfDay)
		if err != nil {
			return nil, err
		}
		return Weekly{Day: time.Weekday(*ns.DayOfWeek), TimeOfDay: tod}, nil
	}
	return OneOff{StartAt: ns.ScheduledAt.UTC()}, nil
}
