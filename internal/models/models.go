package models

import (
	"time"

	"github.com/google/uuid"
)

type LessonType string

const (
	LessonGroepsles LessonType = "Groepsles"
	LessonDressuur  LessonType = "Dressuur"
	LessonSpringles LessonType = "Springles"
	LessonPriveles  LessonType = "Priveles"
)

// RecurringLesson is a weekly lesson template. DayOfWeek is Monday-first
// (0=maandag .. 6=zondag), matching the recurring_lessons table. This is NOT
// the Sunday-first convention time.Weekday uses; translate via
// schedule.ToScheduleWeekday before comparing.
type RecurringLesson struct {
	ID              uuid.UUID  `db:"id"`
	Name            string     `db:"name"`
	DayOfWeek       int        `db:"day_of_week"`
	Time            string     `db:"time"` // "15:04:05"
	DurationMinutes int        `db:"duration"`
	Instructor      string     `db:"instructor"`
	Type            LessonType `db:"type"`
	MaxParticipants int        `db:"max_participants"`
}

// Enrollment is a standing weekly registration: valid for every future
// occurrence until withdrawn or overridden per date by a Cancellation.
// Exactly one participant identity: the member themselves when
// FamilyMemberID is nil, otherwise the family member.
type Enrollment struct {
	ID               uuid.UUID  `db:"id"`
	LessonID         uuid.UUID  `db:"recurring_lesson_id"`
	MemberID         uuid.UUID  `db:"member_id"`
	FamilyMemberID   *uuid.UUID `db:"family_member_id"`
	FamilyMemberName string     `db:"family_member_name"`
}

// Cancellation is a date-scoped exception: the participant stays enrolled
// but is absent for this one occurrence. Immutable once written.
type Cancellation struct {
	ID             uuid.UUID  `db:"id"`
	LessonID       uuid.UUID  `db:"recurring_lesson_id"`
	MemberID       uuid.UUID  `db:"member_id"`
	FamilyMemberID *uuid.UUID `db:"family_member_id"`
	Date           time.Time  `db:"date"`
	CancelledAt    time.Time  `db:"cancelled_at"`
	CancelledBy    string     `db:"cancelled_by"`
	Note           *string    `db:"note"`
}

type FamilyMember struct {
	ID       uuid.UUID `db:"id"`
	MemberID uuid.UUID `db:"member_id"`
	Name     string    `db:"name"`
	Status   string    `db:"status"`
}

// Leskaart is a prepaid lesson-credit card. Read-only here; the credit
// ledger is maintained elsewhere.
type Leskaart struct {
	ID               uuid.UUID `db:"id"`
	KlantID          uuid.UUID `db:"klant_id"`
	TotaalLessen     int       `db:"totaal_lessen"`
	GebruikteLessen  int       `db:"gebruikte_lessen"`
	ResterendeLessen int       `db:"resterende_lessen"`
	StartDatum       time.Time `db:"start_datum"`
	EindDatum        time.Time `db:"eind_datum"`
	Status           string    `db:"status"`
}

// LeskaartOverview is the aggregate projection returned by the
// get_leskaart_overzicht database function.
type LeskaartOverview struct {
	KlantID           uuid.UUID `db:"klant_id"`
	ActieveLeskaarten int       `db:"aantal_actieve_leskaarten"`
	TotaalLessen      int       `db:"totaal_lessen"`
	GebruikteLessen   int       `db:"totaal_gebruikte_lessen"`
	ResterendeLessen  int       `db:"totaal_resterende_lessen"`
	EersteStartDatum  time.Time `db:"eerste_start_datum"`
	LaatsteEindDatum  time.Time `db:"laatste_eind_datum"`
}
