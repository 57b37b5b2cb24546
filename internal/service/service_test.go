package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"manege-service/api"
	"manege-service/internal/models"
	"manege-service/internal/schedule"
	"manege-service/pkg/response"

	"github.com/google/uuid"
)

var (
	testMemberID = uuid.MustParse("6f1d8f1e-4c2a-4b5e-9a7d-0c3f5b2e8d11")
	testLessonID = uuid.MustParse("b3a9c5d7-2e4f-4a6b-8c1d-9e0f1a2b3c4d")
	testFamilyID = uuid.MustParse("1c9e7a5b-3d2f-4e6a-b8c0-d1e2f3a4b5c6")

	// Monday.
	testToday = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
)

type mockStore struct {
	lessons       []models.RecurringLesson
	familyMembers []models.FamilyMember
	enrollments   []models.Enrollment
	cancellations []models.Cancellation
	counts        map[uuid.UUID]int
	leskaarten    []models.Leskaart
	overview      *models.LeskaartOverview

	createEnrollmentErr   error
	createCancellationErr error

	createdEnrollments   []*models.Enrollment
	createdCancellations []*models.Cancellation
}

func (m *mockStore) ListLessons(ctx context.Context) ([]models.RecurringLesson, error) {
	return m.lessons, nil
}

func (m *mockStore) GetLesson(ctx context.Context, lessonID uuid.UUID) (*models.RecurringLesson, error) {
	for _, lesson := range m.lessons {
		if lesson.ID == lessonID {
			return &lesson, nil
		}
	}
	return nil, response.ErrNotFound
}

func (m *mockStore) ListActiveFamilyMembers(ctx context.Context, memberID uuid.UUID) ([]models.FamilyMember, error) {
	var out []models.FamilyMember
	for _, fm := range m.familyMembers {
		if fm.MemberID == memberID {
			out = append(out, fm)
		}
	}
	return out, nil
}

func (m *mockStore) ListEnrollmentsForMember(ctx context.Context, memberID uuid.UUID, familyMemberIDs []uuid.UUID) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.MemberID == memberID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) ListCancellations(ctx context.Context, memberID uuid.UUID, from, to time.Time) ([]models.Cancellation, error) {
	var out []models.Cancellation
	for _, c := range m.cancellations {
		if c.MemberID == memberID && !c.Date.Before(from) && !c.Date.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) CountParticipants(ctx context.Context, lessonIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	if m.counts == nil {
		return map[uuid.UUID]int{}, nil
	}
	return m.counts, nil
}

func (m *mockStore) HasEnrollment(ctx context.Context, lessonID, memberID uuid.UUID, familyMemberID *uuid.UUID) (bool, error) {
	for _, e := range m.enrollments {
		if e.LessonID == lessonID && e.MemberID == memberID && sameParticipant(e.FamilyMemberID, familyMemberID) {
			return true, nil
		}
	}
	for _, e := range m.createdEnrollments {
		if e.LessonID == lessonID && e.MemberID == memberID && sameParticipant(e.FamilyMemberID, familyMemberID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) HasCancellation(ctx context.Context, lessonID, memberID uuid.UUID, familyMemberID *uuid.UUID, date time.Time) (bool, error) {
	key := schedule.DateKey(date)
	for _, c := range m.cancellations {
		if c.LessonID == lessonID && c.MemberID == memberID && sameParticipant(c.FamilyMemberID, familyMemberID) && schedule.DateKey(c.Date) == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	if m.createEnrollmentErr != nil {
		return m.createEnrollmentErr
	}
	m.createdEnrollments = append(m.createdEnrollments, e)
	return nil
}

func (m *mockStore) CreateCancellation(ctx context.Context, c *models.Cancellation) error {
	if m.createCancellationErr != nil {
		return m.createCancellationErr
	}
	m.createdCancellations = append(m.createdCancellations, c)
	return nil
}

func (m *mockStore) GetLeskaartOverview(ctx context.Context, memberID uuid.UUID) (*models.LeskaartOverview, error) {
	if m.overview == nil {
		return nil, response.ErrNotFound
	}
	return m.overview, nil
}

func (m *mockStore) ListLeskaarten(ctx context.Context, memberID uuid.UUID) ([]models.Leskaart, error) {
	return m.leskaarten, nil
}

func sameParticipant(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type mockLocker struct {
	denied   bool
	acquired []string
}

func (m *mockLocker) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.denied {
		return false, nil
	}
	m.acquired = append(m.acquired, key)
	return true, nil
}

func (m *mockLocker) Unlock(ctx context.Context, key string) error { return nil }

func wednesdayLesson() models.RecurringLesson {
	return models.RecurringLesson{
		ID:              testLessonID,
		Name:            "Groepsles gevorderden",
		DayOfWeek:       2,
		Time:            "19:00:00",
		DurationMinutes: 60,
		Type:            models.LessonGroepsles,
		MaxParticipants: 8,
	}
}

func newTestService(store *mockStore, locker *mockLocker) *Service {
	svc := NewService(store, locker, 5*time.Second)
	svc.now = func() time.Time { return testToday }
	return svc
}

func TestEnroll_IdempotentReplay(t *testing.T) {
	store := &mockStore{lessons: []models.RecurringLesson{wednesdayLesson()}}
	svc := newTestService(store, &mockLocker{})

	req := &api.EnrollRequest{LessonID: testLessonID.String()}

	first, err := svc.Enroll(context.Background(), testMemberID, req)
	if err != nil {
		t.Fatalf("first enroll: %v", err)
	}
	if first.AlreadyEnrolled {
		t.Error("first enroll reported already_enrolled")
	}
	if len(store.createdEnrollments) != 1 {
		t.Fatalf("created %d enrollments, want 1", len(store.createdEnrollments))
	}

	second, err := svc.Enroll(context.Background(), testMemberID, req)
	if err != nil {
		t.Fatalf("second enroll: %v", err)
	}
	if !second.AlreadyEnrolled {
		t.Error("second enroll did not report already_enrolled")
	}
	if len(store.createdEnrollments) != 1 {
		t.Errorf("replay created extra enrollment, total %d", len(store.createdEnrollments))
	}
}

func TestEnroll_FamilyMemberMustBelongToAccount(t *testing.T) {
	store := &mockStore{
		lessons: []models.RecurringLesson{wednesdayLesson()},
		familyMembers: []models.FamilyMember{
			{ID: testFamilyID, MemberID: uuid.MustParse("99999999-9999-4999-8999-999999999999"), Name: "Bianca"},
		},
	}
	svc := newTestService(store, &mockLocker{})

	familyID := testFamilyID.String()
	_, err := svc.Enroll(context.Background(), testMemberID, &api.EnrollRequest{
		LessonID:       testLessonID.String(),
		FamilyMemberID: &familyID,
	})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
	if len(store.createdEnrollments) != 0 {
		t.Error("enrollment written despite failed validation")
	}
}

func TestEnroll_UnknownLesson(t *testing.T) {
	svc := newTestService(&mockStore{}, &mockLocker{})

	_, err := svc.Enroll(context.Background(), testMemberID, &api.EnrollRequest{
		LessonID: testLessonID.String(),
	})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestEnroll_LockContention(t *testing.T) {
	store := &mockStore{lessons: []models.RecurringLesson{wednesdayLesson()}}
	svc := newTestService(store, &mockLocker{denied: true})

	_, err := svc.Enroll(context.Background(), testMemberID, &api.EnrollRequest{
		LessonID: testLessonID.String(),
	})
	if !errors.Is(err, response.ErrLocked) {
		t.Fatalf("got %v, want lock error", err)
	}
	if len(store.createdEnrollments) != 0 {
		t.Error("enrollment written without holding the lock")
	}
}

func TestRequestCancellation_ConfirmationGate(t *testing.T) {
	store := &mockStore{
		lessons: []models.RecurringLesson{wednesdayLesson()},
		enrollments: []models.Enrollment{
			{ID: uuid.New(), LessonID: testLessonID, MemberID: testMemberID},
		},
	}
	svc := newTestService(store, &mockLocker{})

	req := &api.CancellationRequest{
		LessonID: testLessonID.String(),
		Date:     "2025-03-12",
	}

	preview, err := svc.RequestCancellation(context.Background(), testMemberID, req)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Status != api.CancellationConfirmationRequired {
		t.Errorf("preview status = %q, want %q", preview.Status, api.CancellationConfirmationRequired)
	}
	if len(store.createdCancellations) != 0 {
		t.Fatal("unconfirmed request wrote a cancellation")
	}

	req.Confirmed = true
	committed, err := svc.RequestCancellation(context.Background(), testMemberID, req)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if committed.Status != api.CancellationCancelled {
		t.Errorf("commit status = %q, want %q", committed.Status, api.CancellationCancelled)
	}
	if committed.CancelledAt == nil || !committed.CancelledAt.Equal(testToday) {
		t.Errorf("cancelled_at = %v, want %v", committed.CancelledAt, testToday)
	}
	if len(store.createdCancellations) != 1 {
		t.Fatalf("created %d cancellations, want 1", len(store.createdCancellations))
	}
	if got := schedule.DateKey(store.createdCancellations[0].Date); got != "2025-03-12" {
		t.Errorf("stored date %s, want 2025-03-12", got)
	}
}

func TestRequestCancellation_WrongWeekday(t *testing.T) {
	store := &mockStore{
		lessons: []models.RecurringLesson{wednesdayLesson()},
		enrollments: []models.Enrollment{
			{ID: uuid.New(), LessonID: testLessonID, MemberID: testMemberID},
		},
	}
	svc := newTestService(store, &mockLocker{})

	// 2025-03-13 is a Thursday; the lesson recurs on Wednesday.
	_, err := svc.RequestCancellation(context.Background(), testMemberID, &api.CancellationRequest{
		LessonID:  testLessonID.String(),
		Date:      "2025-03-13",
		Confirmed: true,
	})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestRequestCancellation_NotEnrolled(t *testing.T) {
	store := &mockStore{lessons: []models.RecurringLesson{wednesdayLesson()}}
	svc := newTestService(store, &mockLocker{})

	_, err := svc.RequestCancellation(context.Background(), testMemberID, &api.CancellationRequest{
		LessonID:  testLessonID.String(),
		Date:      "2025-03-12",
		Confirmed: true,
	})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestRequestCancellation_RepeatIsIdempotent(t *testing.T) {
	store := &mockStore{
		lessons: []models.RecurringLesson{wednesdayLesson()},
		enrollments: []models.Enrollment{
			{ID: uuid.New(), LessonID: testLessonID, MemberID: testMemberID},
		},
		cancellations: []models.Cancellation{
			{
				ID:          uuid.New(),
				LessonID:    testLessonID,
				MemberID:    testMemberID,
				Date:        time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
				CancelledAt: testToday.Add(-24 * time.Hour),
			},
		},
	}
	svc := newTestService(store, &mockLocker{})

	resp, err := svc.RequestCancellation(context.Background(), testMemberID, &api.CancellationRequest{
		LessonID:  testLessonID.String(),
		Date:      "2025-03-12",
		Confirmed: true,
	})
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if resp.Status != api.CancellationAlreadyCancelled {
		t.Errorf("status = %q, want %q", resp.Status, api.CancellationAlreadyCancelled)
	}
	if len(store.createdCancellations) != 0 {
		t.Error("repeat cancel wrote a second record")
	}
}

func TestRequestCancellation_WriteFailureKeepsEnrollment(t *testing.T) {
	store := &mockStore{
		lessons: []models.RecurringLesson{wednesdayLesson()},
		enrollments: []models.Enrollment{
			{ID: uuid.New(), LessonID: testLessonID, MemberID: testMemberID},
		},
		createCancellationErr: response.ErrWriteFailed,
	}
	svc := newTestService(store, &mockLocker{})

	_, err := svc.RequestCancellation(context.Background(), testMemberID, &api.CancellationRequest{
		LessonID:  testLessonID.String(),
		Date:      "2025-03-12",
		Confirmed: true,
	})
	if !errors.Is(err, response.ErrWriteFailed) {
		t.Fatalf("got %v, want write failure", err)
	}

	enrolled, _ := store.HasEnrollment(context.Background(), testLessonID, testMemberID, nil)
	if !enrolled {
		t.Error("standing enrollment gone after failed cancellation write")
	}
}

func TestSchedule_WindowValidation(t *testing.T) {
	svc := newTestService(&mockStore{}, &mockLocker{})

	for _, window := range []int{0, 1, 14, 30} {
		if _, err := svc.Schedule(context.Background(), testMemberID, window); !errors.Is(err, response.ErrValidation) {
			t.Errorf("window %d: got %v, want validation error", window, err)
		}
	}
}

func TestSchedule_EnrolledWithSingleDateCancelled(t *testing.T) {
	store := &mockStore{
		lessons: []models.RecurringLesson{wednesdayLesson()},
		enrollments: []models.Enrollment{
			{ID: uuid.New(), LessonID: testLessonID, MemberID: testMemberID},
		},
		cancellations: []models.Cancellation{
			{
				ID:          uuid.New(),
				LessonID:    testLessonID,
				MemberID:    testMemberID,
				Date:        time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
				CancelledAt: testToday,
			},
		},
		counts: map[uuid.UUID]int{testLessonID: 5},
	}
	svc := newTestService(store, &mockLocker{})

	days, err := svc.Schedule(context.Background(), testMemberID, schedule.WindowFourWeeks)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(days) != schedule.WindowFourWeeks {
		t.Fatalf("got %d days, want %d", len(days), schedule.WindowFourWeeks)
	}
	if days[0].Date != "2025-03-10" {
		t.Errorf("window starts %s, want Monday 2025-03-10", days[0].Date)
	}

	statuses := map[string]string{}
	for _, day := range days {
		for _, occ := range day.Lessons {
			statuses[occ.Date] = occ.Status
		}
		if day.Empty != (len(day.Lessons) == 0) {
			t.Errorf("day %s: empty flag %v with %d lessons", day.Date, day.Empty, len(day.Lessons))
		}
	}

	if len(statuses) != 4 {
		t.Fatalf("got %d occurrences, want 4 Wednesdays", len(statuses))
	}
	want := map[string]string{
		"2025-03-12": string(schedule.StatusCancelled),
		"2025-03-19": string(schedule.StatusEnrolled),
		"2025-03-26": string(schedule.StatusEnrolled),
		"2025-04-02": string(schedule.StatusEnrolled),
	}
	for date, status := range want {
		if statuses[date] != status {
			t.Errorf("%s: status %q, want %q", date, statuses[date], status)
		}
	}
}

func TestLessons_CountsAndFullBadge(t *testing.T) {
	lesson := wednesdayLesson()
	lesson.MaxParticipants = 5
	store := &mockStore{
		lessons: []models.RecurringLesson{lesson},
		counts:  map[uuid.UUID]int{testLessonID: 5},
	}
	svc := newTestService(store, &mockLocker{})

	lessons, err := svc.Lessons(context.Background())
	if err != nil {
		t.Fatalf("lessons: %v", err)
	}
	if len(lessons) != 1 {
		t.Fatalf("got %d lessons, want 1", len(lessons))
	}
	got := lessons[0]
	if got.CurrentParticipants != 5 || !got.Full {
		t.Errorf("count=%d full=%v, want 5/full", got.CurrentParticipants, got.Full)
	}
	if got.Day != "Woensdag" {
		t.Errorf("day = %q, want Woensdag", got.Day)
	}
	if got.Time != "19:00" || got.EndTime != "20:00" {
		t.Errorf("time %s-%s, want 19:00-20:00", got.Time, got.EndTime)
	}
}

func TestLeskaarten_NoCards(t *testing.T) {
	svc := newTestService(&mockStore{}, &mockLocker{})

	overview, err := svc.Leskaarten(context.Background(), testMemberID)
	if err != nil {
		t.Fatalf("leskaarten: %v", err)
	}
	if overview.ActieveLeskaarten != 0 || len(overview.Kaarten) != 0 {
		t.Errorf("expected zeroed overview, got %+v", overview)
	}
}
