package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"manege-service/api"
	"manege-service/internal/lock"
	"manege-service/internal/models"
	"manege-service/internal/schedule"
	"manege-service/pkg/response"

	"github.com/google/uuid"
)

const (
	dateLayout = "2006-01-02"
	lockTTL    = 10 * time.Second
)

type Service struct {
	store   Store
	locker  lock.Locker
	timeout time.Duration
	now     func() time.Time
}

func NewService(store Store, locker lock.Locker, requestTimeout time.Duration) *Service {
	return &Service{
		store:   store,
		locker:  locker,
		timeout: requestTimeout,
		now:     time.Now,
	}
}

type Store interface {
	// Lesson catalog (read-only; lesson management is staff-side)
	ListLessons(ctx context.Context) ([]models.RecurringLesson, error)
	GetLesson(ctx context.Context, lessonID uuid.UUID) (*models.RecurringLesson, error)

	// Participation ledger
	ListActiveFamilyMembers(ctx context.Context, memberID uuid.UUID) ([]models.FamilyMember, error)
	ListEnrollmentsForMember(ctx context.Context, memberID uuid.UUID, familyMemberIDs []uuid.UUID) ([]models.Enrollment, error)
	ListCancellations(ctx context.Context, memberID uuid.UUID, from, to time.Time) ([]models.Cancellation, error)
	CountParticipants(ctx context.Context, lessonIDs []uuid.UUID) (map[uuid.UUID]int, error)
	HasEnrollment(ctx context.Context, lessonID, memberID uuid.UUID, familyMemberID *uuid.UUID) (bool, error)
	HasCancellation(ctx context.Context, lessonID, memberID uuid.UUID, familyMemberID *uuid.UUID, date time.Time) (bool, error)

	// Enrollment commands (single-statement writes, no transactions)
	CreateEnrollment(ctx context.Context, e *models.Enrollment) error
	CreateCancellation(ctx context.Context, c *models.Cancellation) error

	// Leskaarten (read-only credit ledger)
	GetLeskaartOverview(ctx context.Context, memberID uuid.UUID) (*models.LeskaartOverview, error)
	ListLeskaarten(ctx context.Context, memberID uuid.UUID) ([]models.Leskaart, error)
}

// Lessons is the unscoped operational view: the full catalog with standing
// participant counts.
func (s *Service) Lessons(ctx context.Context) ([]*api.Lesson, error) {
	const op = "service.Lessons"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lessons, err := s.store.ListLessons(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	counts, err := s.store.CountParticipants(ctx, lessonIDs(lessons))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.Lesson, 0, len(lessons))
	for _, lesson := range lessons {
		result = append(result, &api.Lesson{
			ID:                  lesson.ID.String(),
			Name:                lesson.Name,
			Day:                 schedule.ScheduleWeekdayName(lesson.DayOfWeek),
			DayOfWeek:           lesson.DayOfWeek,
			Time:                schedule.ShortTime(lesson.Time),
			EndTime:             schedule.EndTime(lesson.Time, lesson.DurationMinutes),
			Instructor:          lesson.Instructor,
			Type:                string(lesson.Type),
			MaxParticipants:     lesson.MaxParticipants,
			CurrentParticipants: counts[lesson.ID],
			Full:                lesson.MaxParticipants > 0 && counts[lesson.ID] >= lesson.MaxParticipants,
		})
	}

	return result, nil
}

// Schedule resolves the member-scoped day-by-day view for a rolling window
// of 7 or 28 days anchored on today.
func (s *Service) Schedule(ctx context.Context, memberID uuid.UUID, window int) ([]*api.ScheduleDay, error) {
	const op = "service.Schedule"

	if window != schedule.WindowWeek && window != schedule.WindowFourWeeks {
		return nil, fmt.Errorf("%s: %w: window must be %d or %d days", op, response.ErrValidation, schedule.WindowWeek, schedule.WindowFourWeeks)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	days := schedule.BuildWindow(s.now(), window)

	lessons, err := s.store.ListLessons(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	familyMembers, err := s.store.ListActiveFamilyMembers(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	familyIDs := make([]uuid.UUID, 0, len(familyMembers))
	for _, fm := range familyMembers {
		familyIDs = append(familyIDs, fm.ID)
	}

	enrollments, err := s.store.ListEnrollmentsForMember(ctx, memberID, familyIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cancellations, err := s.store.ListCancellations(ctx, memberID, days[0].Date, days[len(days)-1].Date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	counts, err := s.store.CountParticipants(ctx, lessonIDs(lessons))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	viewer := &schedule.Viewer{MemberID: memberID, FamilyMemberIDs: familyIDs}
	resolved := schedule.Resolve(days, lessons, enrollments, cancellations, counts, viewer)

	result := make([]*api.ScheduleDay, 0, len(resolved))
	for _, day := range resolved {
		dto := &api.ScheduleDay{
			Date:      day.Day.Key,
			Label:     day.Day.Label,
			LabelFull: day.Day.LabelFull,
			IsToday:   day.Day.IsToday,
			Empty:     day.Empty,
			Lessons:   make([]api.OccurrenceView, 0, len(day.Occurrences)),
		}

		for _, occ := range day.Occurrences {
			view := api.OccurrenceView{
				LessonID:            occ.Lesson.ID.String(),
				Name:                occ.Lesson.Name,
				Date:                occ.Date,
				Time:                occ.StartTime,
				EndTime:             occ.EndTime,
				Instructor:          occ.Lesson.Instructor,
				Type:                string(occ.Lesson.Type),
				MaxParticipants:     occ.Lesson.MaxParticipants,
				CurrentParticipants: occ.CurrentParticipants,
				Full:                occ.Full,
				Status:              string(occ.Status),
				CancelledBy:         occ.CancelledBy,
				CancellationNote:    occ.CancellationNote,
			}
			if occ.Status == schedule.StatusCancelled {
				at := occ.CancelledAt
				view.CancelledAt = &at
			}

			dto.Lessons = append(dto.Lessons, view)
		}

		result = append(result, dto)
	}

	return result, nil
}

// Enroll records a standing weekly registration. Enrolling twice is success:
// the registration is not dated, so "already enrolled" is the state the
// caller asked for.
func (s *Service) Enroll(ctx context.Context, memberID uuid.UUID, req *api.EnrollRequest) (*api.EnrollResponse, error) {
	const op = "service.Enroll"

	lessonID, err := uuid.Parse(req.LessonID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: invalid lesson_id", op, response.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.GetLesson(ctx, lessonID); err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w: unknown lesson", op, response.ErrValidation)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	familyMemberID, err := s.resolveFamilyMember(ctx, memberID, req.FamilyMemberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lockKey := participationLockKey(lessonID, memberID, familyMemberID)
	locked, err := s.locker.Lock(ctx, lockKey, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	enrolled, err := s.store.HasEnrollment(ctx, lessonID, memberID, familyMemberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	state := schedule.NotEnrolled
	if enrolled {
		state = schedule.Enrolled
	}

	_, effects, err := schedule.NextOnEnroll(state)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	alreadyEnrolled := len(effects) == 0
	for _, effect := range effects {
		if effect.Kind != schedule.EffectInsertEnrollment {
			continue
		}

		err := s.store.CreateEnrollment(ctx, &models.Enrollment{
			ID:             uuid.New(),
			LessonID:       lessonID,
			MemberID:       memberID,
			FamilyMemberID: familyMemberID,
		})
		if errors.Is(err, response.ErrAlreadyEnrolled) {
			// Lost the race against a concurrent enroll: same outcome.
			alreadyEnrolled = true
			err = nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return &api.EnrollResponse{
		LessonID:        lessonID.String(),
		MemberID:        memberID.String(),
		FamilyMemberID:  req.FamilyMemberID,
		AlreadyEnrolled: alreadyEnrolled,
	}, nil
}

// RequestCancellation applies the date-scoped cancellation command. The
// write only happens when Confirmed is set; an unconfirmed request returns
// the receipt the UI shows in its confirmation prompt. The standing
// enrollment is never touched here, whatever happens to the write.
func (s *Service) RequestCancellation(ctx context.Context, memberID uuid.UUID, req *api.CancellationRequest) (*api.CancellationResponse, error) {
	const op = "service.RequestCancellation"

	lessonID, err := uuid.Parse(req.LessonID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: invalid lesson_id", op, response.ErrValidation)
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: invalid date, want YYYY-MM-DD", op, response.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lesson, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w: unknown lesson", op, response.ErrValidation)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if schedule.ToScheduleWeekday(int(date.Weekday())) != lesson.DayOfWeek {
		return nil, fmt.Errorf("%s: %w: %s has no occurrence on %s",
			op, response.ErrValidation, lesson.Name, req.Date)
	}

	familyMemberID, err := s.resolveFamilyMember(ctx, memberID, req.FamilyMemberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	enrolled, err := s.store.HasEnrollment(ctx, lessonID, memberID, familyMemberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cancelled, err := s.store.HasCancellation(ctx, lessonID, memberID, familyMemberID, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	state := schedule.NotEnrolled
	switch {
	case cancelled:
		state = schedule.CancelledForDate
	case enrolled:
		state = schedule.Enrolled
	}

	_, effects, err := schedule.NextOnCancel(state)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &api.CancellationResponse{
		LessonID:   lessonID.String(),
		LessonName: lesson.Name,
		Date:       req.Date,
	}

	if len(effects) == 0 {
		resp.Status = api.CancellationAlreadyCancelled
		return resp, nil
	}

	if !req.Confirmed {
		resp.Status = api.CancellationConfirmationRequired
		return resp, nil
	}

	lockKey := participationLockKey(lessonID, memberID, familyMemberID)
	locked, err := s.locker.Lock(ctx, lockKey, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	cancelledAt := s.now()
	err = s.store.CreateCancellation(ctx, &models.Cancellation{
		ID:             uuid.New(),
		LessonID:       lessonID,
		MemberID:       memberID,
		FamilyMemberID: familyMemberID,
		Date:           date,
		CancelledAt:    cancelledAt,
		Note:           req.Note,
	})
	if errors.Is(err, response.ErrAlreadyCancelled) {
		// Concurrent double-cancel: the record exists, report success.
		resp.Status = api.CancellationAlreadyCancelled
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp.Status = api.CancellationCancelled
	resp.CancelledAt = &cancelledAt
	if req.FamilyMemberID != nil {
		resp.CancelledBy = s.familyMemberName(ctx, memberID, familyMemberID)
	}

	return resp, nil
}

// Leskaarten returns the credit overview plus the individual cards. A member
// without any cards gets a zeroed overview, not an error.
func (s *Service) Leskaarten(ctx context.Context, memberID uuid.UUID) (*api.LeskaartOverview, error) {
	const op = "service.Leskaarten"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := &api.LeskaartOverview{Kaarten: []api.Leskaart{}}

	overview, err := s.store.GetLeskaartOverview(ctx, memberID)
	if err != nil && !errors.Is(err, response.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if overview != nil {
		result.ActieveLeskaarten = overview.ActieveLeskaarten
		result.TotaalLessen = overview.TotaalLessen
		result.GebruikteLessen = overview.GebruikteLessen
		result.ResterendeLessen = overview.ResterendeLessen
		result.EersteStartDatum = overview.EersteStartDatum.Format(dateLayout)
		result.LaatsteEindDatum = overview.LaatsteEindDatum.Format(dateLayout)
	}

	kaarten, err := s.store.ListLeskaarten(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, k := range kaarten {
		result.Kaarten = append(result.Kaarten, api.Leskaart{
			ID:               k.ID.String(),
			TotaalLessen:     k.TotaalLessen,
			GebruikteLessen:  k.GebruikteLessen,
			ResterendeLessen: k.ResterendeLessen,
			StartDatum:       k.StartDatum.Format(dateLayout),
			EindDatum:        k.EindDatum.Format(dateLayout),
			Status:           k.Status,
		})
	}

	return result, nil
}

// resolveFamilyMember checks that a requested family member exists, is
// active and belongs to the requesting member.
func (s *Service) resolveFamilyMember(ctx context.Context, memberID uuid.UUID, raw *string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}

	familyMemberID, err := uuid.Parse(*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid family_member_id", response.ErrValidation)
	}

	familyMembers, err := s.store.ListActiveFamilyMembers(ctx, memberID)
	if err != nil {
		return nil, err
	}

	for _, fm := range familyMembers {
		if fm.ID == familyMemberID {
			return &familyMemberID, nil
		}
	}

	return nil, fmt.Errorf("%w: family member does not belong to this account", response.ErrValidation)
}

func (s *Service) familyMemberName(ctx context.Context, memberID uuid.UUID, familyMemberID *uuid.UUID) string {
	if familyMemberID == nil {
		return ""
	}

	familyMembers, err := s.store.ListActiveFamilyMembers(ctx, memberID)
	if err != nil {
		return ""
	}

	for _, fm := range familyMembers {
		if fm.ID == *familyMemberID {
			return fm.Name
		}
	}

	return ""
}

func lessonIDs(lessons []models.RecurringLesson) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lessons))
	for _, lesson := range lessons {
		ids = append(ids, lesson.ID)
	}
	return ids
}

func participationLockKey(lessonID, memberID uuid.UUID, familyMemberID *uuid.UUID) string {
	key := fmt.Sprintf("participation:%s:%s", lessonID, memberID)
	if familyMemberID != nil {
		key = fmt.Sprintf("%s:%s", key, *familyMemberID)
	}
	return key
}
