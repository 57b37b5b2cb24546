package schedule

import "time"

// Window lengths observed in the portal: one week on the lesson page, four
// weeks on the occupancy page.
const (
	WindowWeek      = 7
	WindowFourWeeks = 28
)

const dateKeyLayout = "2006-01-02"

var dayLabels = [7]string{"ZO", "MA", "DI", "WO", "DO", "VR", "ZA"}

var dayLabelsFull = [7]string{"Zondag", "Maandag", "Dinsdag", "Woensdag", "Donderdag", "Vrijdag", "Zaterdag"}

// CalendarDay is one day of a rolling window. Key is the ISO date and is the
// only value safe to use for selection and equality: day-of-month repeats
// inside a 28-day window.
type CalendarDay struct {
	Date            time.Time
	Key             string
	Label           string
	LabelFull       string
	LabelWeekday    int // Sunday-first, 0=zondag .. 6=zaterdag
	ScheduleWeekday int // Monday-first, 0=maandag .. 6=zondag
	IsToday         bool
}

// ToScheduleWeekday converts a Sunday-first weekday index (time.Weekday,
// calendar libraries) to the Monday-first index recurring_lessons.day_of_week
// uses. Total and bijective on [0,6].
func ToScheduleWeekday(label int) int {
	if label == 0 {
		return 6
	}
	return label - 1
}

// BuildWindow returns length contiguous days starting from the Monday on or
// before today. Pure: same today and length always yield the same window.
func BuildWindow(today time.Time, length int) []CalendarDay {
	todayKey := today.Format(dateKeyLayout)

	monday := truncateToDate(today)
	monday = monday.AddDate(0, 0, -ToScheduleWeekday(int(today.Weekday())))

	days := make([]CalendarDay, 0, length)
	for i := 0; i < length; i++ {
		date := monday.AddDate(0, 0, i)
		label := int(date.Weekday())
		days = append(days, CalendarDay{
			Date:            date,
			Key:             date.Format(dateKeyLayout),
			Label:           dayLabels[label],
			LabelFull:       dayLabelsFull[label],
			LabelWeekday:    label,
			ScheduleWeekday: ToScheduleWeekday(label),
			IsToday:         date.Format(dateKeyLayout) == todayKey,
		})
	}

	return days
}

// ScheduleWeekdayName returns the Dutch day name for a Monday-first weekday
// index, as stored on recurring lessons.
func ScheduleWeekdayName(scheduleWeekday int) string {
	if scheduleWeekday < 0 || scheduleWeekday > 6 {
		return "Onbekend"
	}
	if scheduleWeekday == 6 {
		return dayLabelsFull[0]
	}
	return dayLabelsFull[scheduleWeekday+1]
}

// DateKey formats t as the stable ISO key used throughout the module.
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
