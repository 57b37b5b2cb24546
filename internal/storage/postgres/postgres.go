package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"manege-service/internal/models"
	"manege-service/pkg/response"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// #### session ####

// GetMemberIDByAPIKey resolves an X-API-Key header to the linked member.
// Inactive, expired or unknown keys all resolve to ErrNotAuthenticated; the
// caller cannot tell the cases apart on purpose.
func (s *Storage) GetMemberIDByAPIKey(ctx context.Context, apiKey string) (uuid.UUID, error) {
	const op = "storage.postgres.GetMemberIDByAPIKey"

	var memberID uuid.UUID
	var isActive bool
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT member_id, is_active, expires_at FROM api_keys WHERE api_key=$1`,
		apiKey).Scan(&memberID, &isActive, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, fmt.Errorf("%s: %w", op, response.ErrNotAuthenticated)
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if !isActive {
		return uuid.Nil, fmt.Errorf("%s: %w", op, response.ErrNotAuthenticated)
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		return uuid.Nil, fmt.Errorf("%s: %w", op, response.ErrNotAuthenticated)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at=NOW() WHERE api_key=$1`, apiKey)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return memberID, nil
}

// #### lesson catalog ####

func (s *Storage) ListLessons(ctx context.Context) ([]models.RecurringLesson, error) {
	const op = "storage.postgres.ListLessons"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, day_of_week, time, COALESCE(duration, 60), COALESCE(instructor, ''), COALESCE(type, 'Groepsles'), COALESCE(max_participants, 0)
		FROM recurring_lessons
		ORDER BY day_of_week, time`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var lessons []models.RecurringLesson
	for rows.Next() {
		var lesson models.RecurringLesson
		err := rows.Scan(
			&lesson.ID,
			&lesson.Name,
			&lesson.DayOfWeek,
			&lesson.Time,
			&lesson.DurationMinutes,
			&lesson.Instructor,
			&lesson.Type,
			&lesson.MaxParticipants,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lessons = append(lessons, lesson)
	}

	return lessons, nil
}

func (s *Storage) GetLesson(ctx context.Context, lessonID uuid.UUID) (*models.RecurringLesson, error) {
	const op = "storage.postgres.GetLesson"

	var lesson models.RecurringLesson

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, day_of_week, time, COALESCE(duration, 60), COALESCE(instructor, ''), COALESCE(type, 'Groepsles'), COALESCE(max_participants, 0)
		FROM recurring_lessons WHERE id=$1`, lessonID).
		Scan(
			&lesson.ID,
			&lesson.Name,
			&lesson.DayOfWeek,
			&lesson.Time,
			&lesson.DurationMinutes,
			&lesson.Instructor,
			&lesson.Type,
			&lesson.MaxParticipants,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &lesson, nil
}

// #### participation ledger ####

func (s *Storage) ListActiveFamilyMembers(ctx context.Context, memberID uuid.UUID) ([]models.FamilyMember, error) {
	const op = "storage.postgres.ListActiveFamilyMembers"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, name, status FROM family_members WHERE member_id=$1 AND status='Actief'`,
		memberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var members []models.FamilyMember
	for rows.Next() {
		var fm models.FamilyMember
		if err := rows.Scan(&fm.ID, &fm.MemberID, &fm.Name, &fm.Status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		members = append(members, fm)
	}

	return members, nil
}

func (s *Storage) ListEnrollmentsForMember(ctx context.Context, memberID uuid.UUID, familyMemberIDs []uuid.UUID) ([]models.Enrollment, error) {
	const op = "storage.postgres.ListEnrollmentsForMember"

	query := `SELECT lp.id, lp.recurring_lesson_id, lp.member_id, lp.family_member_id, COALESCE(fm.name, '')
		FROM lesson_participants lp
		LEFT JOIN family_members fm ON fm.id = lp.family_member_id
		WHERE lp.member_id=$1`
	args := []any{memberID}

	if len(familyMemberIDs) > 0 {
		query = `SELECT lp.id, lp.recurring_lesson_id, lp.member_id, lp.family_member_id, COALESCE(fm.name, '')
		FROM lesson_participants lp
		LEFT JOIN family_members fm ON fm.id = lp.family_member_id
		WHERE lp.member_id=$1 OR lp.family_member_id = ANY($2)`
		args = append(args, pq.Array(familyMemberIDs))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var enrollments []models.Enrollment
	for rows.Next() {
		var e models.Enrollment
		var famID uuid.NullUUID
		err := rows.Scan(&e.ID, &e.LessonID, &e.MemberID, &famID, &e.FamilyMemberName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if famID.Valid {
			id := famID.UUID
			e.FamilyMemberID = &id
		}

		enrollments = append(enrollments, e)
	}

	return enrollments, nil
}

func (s *Storage) ListCancellations(ctx context.Context, memberID uuid.UUID, from, to time.Time) ([]models.Cancellation, error) {
	const op = "storage.postgres.ListCancellations"

	rows, err := s.db.QueryContext(ctx,
		`SELECT lc.id, lc.recurring_lesson_id, lc.member_id, lc.family_member_id, lc.date, lc.cancelled_at, lc.note,
			COALESCE(fm.name, m.name, '')
		FROM lesson_cancellations lc
		LEFT JOIN family_members fm ON fm.id = lc.family_member_id
		LEFT JOIN members m ON m.id = lc.member_id
		WHERE lc.member_id=$1 AND lc.date >= $2 AND lc.date <= $3`,
		memberID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var cancellations []models.Cancellation
	for rows.Next() {
		var c models.Cancellation
		var famID uuid.NullUUID
		var note sql.NullString
		err := rows.Scan(&c.ID, &c.LessonID, &c.MemberID, &famID, &c.Date, &c.CancelledAt, &note, &c.CancelledBy)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if famID.Valid {
			id := famID.UUID
			c.FamilyMemberID = &id
		}
		if note.Valid {
			n := note.String
			c.Note = &n
		}

		cancellations = append(cancellations, c)
	}

	return cancellations, nil
}

func (s *Storage) CountParticipants(ctx context.Context, lessonIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	const op = "storage.postgres.CountParticipants"

	counts := make(map[uuid.UUID]int, len(lessonIDs))
	if len(lessonIDs) == 0 {
		return counts, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT recurring_lesson_id, COUNT(*)
		FROM lesson_participants
		WHERE recurring_lesson_id = ANY($1)
		GROUP BY recurring_lesson_id`,
		pq.Array(lessonIDs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var lessonID uuid.UUID
		var count int
		if err := rows.Scan(&lessonID, &count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		counts[lessonID] = count
	}

	return counts, nil
}

func (s *Storage) HasEnrollment(ctx context.Context, lessonID, memberID uuid.UUID, familyMemberID *uuid.UUID) (bool, error) {
	const op = "storage.postgres.HasEnrollment"

	query := `SELECT EXISTS (
		SELECT 1 FROM lesson_participants
		WHERE recurring_lesson_id=$1 AND member_id=$2 AND family_member_id IS NULL)`
	args := []any{lessonID, memberID}

	if familyMemberID != nil {
		query = `SELECT EXISTS (
		SELECT 1 FROM lesson_participants
		WHERE recurring_lesson_id=$1 AND member_id=$2 AND family_member_id=$3)`
		args = append(args, *familyMemberID)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (s *Storage) HasCancellation(ctx context.Context, lessonID, memberID uuid.UUID, familyMemberID *uuid.UUID, date time.Time) (bool, error) {
	const op = "storage.postgres.HasCancellation"

	query := `SELECT EXISTS (
		SELECT 1 FROM lesson_cancellations
		WHERE recurring_lesson_id=$1 AND member_id=$2 AND family_member_id IS NULL AND date=$3)`
	args := []any{lessonID, memberID, date}

	if familyMemberID != nil {
		query = `SELECT EXISTS (
		SELECT 1 FROM lesson_cancellations
		WHERE recurring_lesson_id=$1 AND member_id=$2 AND date=$3 AND family_member_id=$4)`
		args = append(args, *familyMemberID)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// #### enrollment commands ####

// CreateEnrollment inserts the standing registration. A duplicate key is
// ErrAlreadyEnrolled, which callers treat as success; a broken foreign key
// (unknown lesson or family member) is a validation failure.
func (s *Storage) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	const op = "storage.postgres.CreateEnrollment"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lesson_participants (id, recurring_lesson_id, member_id, family_member_id)
		VALUES ($1, $2, $3, $4)`,
		e.ID,
		e.LessonID,
		e.MemberID,
		familyMemberArg(e.FamilyMemberID),
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, response.ErrAlreadyEnrolled)
		}
		if ok && sqlErr.Code == "23503" {
			return fmt.Errorf("%s: %w", op, response.ErrValidation)
		}

		return fmt.Errorf("%s: %w: %v", op, response.ErrWriteFailed, err)
	}

	return nil
}

func (s *Storage) CreateCancellation(ctx context.Context, c *models.Cancellation) error {
	const op = "storage.postgres.CreateCancellation"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lesson_cancellations (id, recurring_lesson_id, member_id, family_member_id, date, cancelled_at, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID,
		c.LessonID,
		c.MemberID,
		familyMemberArg(c.FamilyMemberID),
		c.Date,
		c.CancelledAt,
		c.Note,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, response.ErrAlreadyCancelled)
		}
		if ok && sqlErr.Code == "23503" {
			return fmt.Errorf("%s: %w", op, response.ErrValidation)
		}

		return fmt.Errorf("%s: %w: %v", op, response.ErrWriteFailed, err)
	}

	return nil
}

// #### leskaarten ####

func (s *Storage) GetLeskaartOverview(ctx context.Context, memberID uuid.UUID) (*models.LeskaartOverview, error) {
	const op = "storage.postgres.GetLeskaartOverview"

	var overview models.LeskaartOverview

	err := s.db.QueryRowContext(ctx, `SELECT * FROM get_leskaart_overzicht($1)`, memberID).
		Scan(
			&overview.KlantID,
			&overview.ActieveLeskaarten,
			&overview.ResterendeLessen,
			&overview.TotaalLessen,
			&overview.GebruikteLessen,
			&overview.EersteStartDatum,
			&overview.LaatsteEindDatum,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &overview, nil
}

func (s *Storage) ListLeskaarten(ctx context.Context, memberID uuid.UUID) ([]models.Leskaart, error) {
	const op = "storage.postgres.ListLeskaarten"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, klant_id, totaal_lessen, gebruikte_lessen, resterende_lessen, start_datum, eind_datum, status
		FROM leskaarten
		WHERE klant_id=$1
		ORDER BY created_at DESC`,
		memberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var kaarten []models.Leskaart
	for rows.Next() {
		var k models.Leskaart
		err := rows.Scan(
			&k.ID,
			&k.KlantID,
			&k.TotaalLessen,
			&k.GebruikteLessen,
			&k.ResterendeLessen,
			&k.StartDatum,
			&k.EindDatum,
			&k.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		kaarten = append(kaarten, k)
	}

	return kaarten, nil
}

func familyMemberArg(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
