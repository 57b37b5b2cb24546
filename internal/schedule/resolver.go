package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"manege-service/internal/models"

	"github.com/google/uuid"
)

type OccurrenceStatus string

const (
	// StatusOpen: the viewer is not enrolled (or there is no viewer).
	StatusOpen OccurrenceStatus = "open"
	// StatusEnrolled: the viewer has a standing enrollment and no
	// cancellation for this date.
	StatusEnrolled OccurrenceStatus = "enrolled"
	// StatusCancelled: the viewer cancelled this specific date. The
	// enroll/cancel toggle must not be offered; a receipt is shown instead.
	StatusCancelled OccurrenceStatus = "cancelled"
)

// Occurrence is one concrete instance of a recurring lesson on one date.
// Never persisted.
type Occurrence struct {
	Lesson              models.RecurringLesson
	Date                string // ISO date key
	StartTime           string // "15:04"
	EndTime             string // "15:04"
	CurrentParticipants int
	Full                bool
	Status              OccurrenceStatus
	CancelledBy         string
	CancelledAt         time.Time
	CancellationNote    *string
}

// DaySchedule is the resolved view for one calendar day. Empty is set
// explicitly when no lesson recurs on that weekday.
type DaySchedule struct {
	Day         CalendarDay
	Occurrences []Occurrence
	Empty       bool
}

// Viewer scopes resolution to one member plus their family members. A nil
// viewer yields the unscoped operational view: every occurrence StatusOpen.
type Viewer struct {
	MemberID        uuid.UUID
	FamilyMemberIDs []uuid.UUID
}

// Resolve joins the calendar window, the lesson catalog, the viewer's
// participation ledger and the aggregate participant counts into the
// day-by-day view. Output ordering is deterministic: days keep window order,
// occurrences sort by start time then lesson name.
func Resolve(
	days []CalendarDay,
	lessons []models.RecurringLesson,
	enrollments []models.Enrollment,
	cancellations []models.Cancellation,
	counts map[uuid.UUID]int,
	viewer *Viewer,
) []DaySchedule {
	byWeekday := make(map[int][]models.RecurringLesson, 7)
	for _, lesson := range lessons {
		byWeekday[lesson.DayOfWeek] = append(byWeekday[lesson.DayOfWeek], lesson)
	}

	enrolled := make(map[uuid.UUID]bool, len(enrollments))
	if viewer != nil {
		for _, e := range enrollments {
			if viewerOwns(viewer, e.MemberID, e.FamilyMemberID) {
				enrolled[e.LessonID] = true
			}
		}
	}

	type cancellationKey struct {
		lessonID uuid.UUID
		date     string
	}
	cancelled := make(map[cancellationKey]models.Cancellation, len(cancellations))
	if viewer != nil {
		for _, c := range cancellations {
			if viewerOwns(viewer, c.MemberID, c.FamilyMemberID) {
				cancelled[cancellationKey{c.LessonID, DateKey(c.Date)}] = c
			}
		}
	}

	result := make([]DaySchedule, 0, len(days))
	for _, day := range days {
		dayLessons := byWeekday[day.ScheduleWeekday]
		if len(dayLessons) == 0 {
			result = append(result, DaySchedule{Day: day, Empty: true})
			continue
		}

		occurrences := make([]Occurrence, 0, len(dayLessons))
		for _, lesson := range dayLessons {
			occ := Occurrence{
				Lesson:              lesson,
				Date:                day.Key,
				StartTime:           ShortTime(lesson.Time),
				EndTime:             EndTime(lesson.Time, lesson.DurationMinutes),
				CurrentParticipants: counts[lesson.ID],
				Full:                lesson.MaxParticipants > 0 && counts[lesson.ID] >= lesson.MaxParticipants,
				Status:              StatusOpen,
			}

			if c, ok := cancelled[cancellationKey{lesson.ID, day.Key}]; ok {
				occ.Status = StatusCancelled
				occ.CancelledBy = c.CancelledBy
				occ.CancelledAt = c.CancelledAt
				occ.CancellationNote = c.Note
			} else if enrolled[lesson.ID] {
				occ.Status = StatusEnrolled
			}

			occurrences = append(occurrences, occ)
		}

		sort.SliceStable(occurrences, func(i, j int) bool {
			if occurrences[i].Lesson.Time != occurrences[j].Lesson.Time {
				return occurrences[i].Lesson.Time < occurrences[j].Lesson.Time
			}
			return occurrences[i].Lesson.Name < occurrences[j].Lesson.Name
		})

		result = append(result, DaySchedule{Day: day, Occurrences: occurrences})
	}

	return result
}

func viewerOwns(viewer *Viewer, memberID uuid.UUID, familyMemberID *uuid.UUID) bool {
	if familyMemberID == nil {
		return memberID == viewer.MemberID
	}
	if memberID == viewer.MemberID {
		return true
	}
	for _, id := range viewer.FamilyMemberIDs {
		if id == *familyMemberID {
			return true
		}
	}
	return false
}

// EndTime adds the lesson duration to a "15:04" or "15:04:05" start time.
// Unparseable input yields an empty string, matching the portal's display
// fallback.
func EndTime(start string, durationMinutes int) string {
	h, m, ok := splitClock(start)
	if !ok {
		return ""
	}
	if durationMinutes <= 0 {
		durationMinutes = 60
	}

	total := h*60 + m + durationMinutes
	total %= 24 * 60

	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// ShortTime trims a stored "HH:MM:SS" clock down to the "HH:MM" shown to
// riders. Unparseable values pass through untouched.
func ShortTime(t string) string {
	parts := strings.SplitN(t, ":", 3)
	if len(parts) < 2 {
		return t
	}
	return parts[0] + ":" + parts[1]
}

func splitClock(t string) (hour, minute int, ok bool) {
	parsed, err := time.Parse("15:04:05", t)
	if err != nil {
		parsed, err = time.Parse("15:04", t)
		if err != nil {
			return 0, 0, false
		}
	}
	return parsed.Hour(), parsed.Minute(), true
}
