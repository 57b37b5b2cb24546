package api

import "time"

// Lesson is the operational ("bezetting") catalog view: every recurring
// lesson with its standing participant count, not scoped to a member.
type Lesson struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Day                 string `json:"day"`
	DayOfWeek           int    `json:"day_of_week"`
	Time                string `json:"time"`
	EndTime             string `json:"end_time"`
	Instructor          string `json:"instructor,omitempty"`
	Type                string `json:"type"`
	MaxParticipants     int    `json:"max_participants"`
	CurrentParticipants int    `json:"current_participants"`
	Full                bool   `json:"full"`
}

// OccurrenceView is one lesson occurrence on one date as seen by the
// requesting member.
type OccurrenceView struct {
	LessonID            string     `json:"lesson_id"`
	Name                string     `json:"name"`
	Date                string     `json:"date"`
	Time                string     `json:"time"`
	EndTime             string     `json:"end_time"`
	Instructor          string     `json:"instructor,omitempty"`
	Type                string     `json:"type"`
	MaxParticipants     int        `json:"max_participants"`
	CurrentParticipants int        `json:"current_participants"`
	Full                bool       `json:"full"`
	Status              string     `json:"status"`
	CancelledBy         string     `json:"cancelled_by,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CancellationNote    *string    `json:"cancellation_note,omitempty"`
}

type ScheduleDay struct {
	Date      string           `json:"date"`
	Label     string           `json:"label"`
	LabelFull string           `json:"label_full"`
	IsToday   bool             `json:"is_today"`
	Empty     bool             `json:"empty"`
	Lessons   []OccurrenceView `json:"lessons"`
}

type EnrollRequest struct {
	LessonID       string  `json:"lesson_id"`
	FamilyMemberID *string `json:"family_member_id,omitempty"`
}

type EnrollResponse struct {
	LessonID        string  `json:"lesson_id"`
	MemberID        string  `json:"member_id"`
	FamilyMemberID  *string `json:"family_member_id,omitempty"`
	AlreadyEnrolled bool    `json:"already_enrolled"`
}

// CancellationRequest carries the two-step confirmation flag: the first
// request goes out with Confirmed=false and only previews the receipt, the
// commit repeats it with Confirmed=true. The commit is irreversible.
type CancellationRequest struct {
	LessonID       string  `json:"lesson_id"`
	FamilyMemberID *string `json:"family_member_id,omitempty"`
	Date           string  `json:"date"`
	Note           *string `json:"note,omitempty"`
	Confirmed      bool    `json:"confirmed"`
}

const (
	CancellationConfirmationRequired = "confirmation_required"
	CancellationCancelled            = "cancelled"
	CancellationAlreadyCancelled     = "already_cancelled"
)

type CancellationResponse struct {
	LessonID    string     `json:"lesson_id"`
	LessonName  string     `json:"lesson_name"`
	Date        string     `json:"date"`
	Status      string     `json:"status"`
	CancelledBy string     `json:"cancelled_by,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type Leskaart struct {
	ID               string `json:"id"`
	TotaalLessen     int    `json:"totaal_lessen"`
	GebruikteLessen  int    `json:"gebruikte_lessen"`
	ResterendeLessen int    `json:"resterende_lessen"`
	StartDatum       string `json:"start_datum"`
	EindDatum        string `json:"eind_datum"`
	Status           string `json:"status"`
}

type LeskaartOverview struct {
	ActieveLeskaarten int        `json:"aantal_actieve_leskaarten"`
	TotaalLessen      int        `json:"totaal_lessen"`
	GebruikteLessen   int        `json:"totaal_gebruikte_lessen"`
	ResterendeLessen  int        `json:"totaal_resterende_lessen"`
	EersteStartDatum  string     `json:"eerste_start_datum"`
	LaatsteEindDatum  string     `json:"laatste_eind_datum"`
	Kaarten           []Leskaart `json:"leskaarten"`
}
