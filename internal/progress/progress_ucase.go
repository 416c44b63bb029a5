package progress

import (
	"context"
	"errors"
	"time"

	"github.com/pot-code/lms-progress/internal/catalog"
	"github.com/pot-code/lms-progress/internal/domain"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// DefaultMaxUpdateAttempts used when Options leaves it unset
const DefaultMaxUpdateAttempts = 3

// ProgressUseCaseImpl the progress engine
type ProgressUseCaseImpl struct {
	ProgressRepository ProgressRepository
	Catalog            catalog.Catalog
	Enrollments        EnrollmentRegistry
	Notifier           Notifier
	gate               GatePolicy
	maxAttempts        int
	now                func() time.Time
}

var _ ProgressUseCase = &ProgressUseCaseImpl{}

// NewProgressUseCase notifier may be nil
func NewProgressUseCase(
	ProgressRepository ProgressRepository,
	Catalog catalog.Catalog,
	Enrollments EnrollmentRegistry,
	Notifier Notifier,
	options *Options,
) *ProgressUseCaseImpl {
	pu := &ProgressUseCaseImpl{
		ProgressRepository: ProgressRepository,
		Catalog:            Catalog,
		Enrollments:        Enrollments,
		Notifier:           Notifier,
		maxAttempts:        DefaultMaxUpdateAttempts,
		now:                time.Now,
	}
	if options != nil {
		pu.gate = options.Gate
		if options.MaxUpdateAttempts > 0 {
			pu.maxAttempts = options.MaxUpdateAttempts
		}
	}
	return pu
}

func (pu *ProgressUseCaseImpl) nowMilli() int64 {
	return pu.now().UnixNano() / int64(time.Millisecond)
}

func requireIdentity(p domain.Principal) error {
	if p.UserID == "" {
		return domain.Unauthenticated("user not authenticated")
	}
	return nil
}

// resolveCourse follow lecture → module → course, courseID is checked when given
func (pu *ProgressUseCaseImpl) resolveCourse(ctx context.Context, courseID, lectureID string) (string, error) {
	if lectureID == "" {
		return "", domain.BadRequest("lectureId is required")
	}
	lecture, err := pu.Catalog.GetLecture(ctx, lectureID)
	if err != nil {
		return "", err
	}
	if lecture == nil {
		return "", domain.NotFound("lecture not found")
	}
	module, err := pu.Catalog.GetModule(ctx, lecture.ModuleID)
	if err != nil {
		return "", err
	}
	if module == nil {
		return "", domain.NotFound("module not found")
	}
	if courseID != "" && module.CourseID != courseID {
		return "", domain.BadRequest("lecture does not belong to this course")
	}
	return module.CourseID, nil
}

func (pu *ProgressUseCaseImpl) requireEnrollment(ctx context.Context, userID, courseID string) error {
	e, err := pu.Enrollments.FindApprovedEnrollment(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if e == nil {
		return domain.Forbidden("you must be enrolled in this course")
	}
	return nil
}

func (pu *ProgressUseCaseImpl) sequence(ctx context.Context, courseID string) ([]string, error) {
	lectures, err := pu.Catalog.ListPublishedLecturesOrdered(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return catalog.LectureIDs(lectures), nil
}

func (pu *ProgressUseCaseImpl) emptyRecord(userID, courseID string) *ProgressRecord {
	now := pu.nowMilli()
	return &ProgressRecord{
		UserID:            userID,
		CourseID:          courseID,
		UnlockedLectures:  []string{},
		CompletedLectures: []string{},
		LastAccessedAt:    now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// getOrCreate a concurrent creator winning the unique key is answered by reading its record
func (pu *ProgressUseCaseImpl) getOrCreate(ctx context.Context, userID, courseID string) (*ProgressRecord, error) {
	repo := pu.ProgressRepository
	record, err := repo.FindByUserCourse(ctx, userID, courseID)
	if err != nil || record != nil {
		return record, err
	}

	record = pu.emptyRecord(userID, courseID)
	err = repo.Create(ctx, record)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, driver.ErrDuplicateKey) {
		return nil, err
	}

	record, err = repo.FindByUserCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.Conflict("progress record was modified concurrently, please retry")
	}
	return record, nil
}

// mutate apply change to a copy of record and persist it with a version check.
// A stale write re-reads the record and re-runs change, which re-validates it.
func (pu *ProgressUseCaseImpl) mutate(ctx context.Context, record *ProgressRecord, change func(*ProgressRecord) error) (*ProgressRecord, error) {
	repo := pu.ProgressRepository
	for attempt := 1; ; attempt++ {
		next := record.clone()
		if err := change(next); err != nil {
			return nil, err
		}
		now := pu.nowMilli()
		next.LastAccessedAt = now
		next.UpdatedAt = now

		err := repo.Update(ctx, next, record.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrStaleRecord) {
			return nil, err
		}
		if attempt >= pu.maxAttempts {
			return nil, domain.Conflict("progress record was modified concurrently, please retry")
		}

		logging.ExtractLoggerFromContext(ctx).Debug("stale progress record, retrying",
			zap.String("progress.id", record.ID), zap.Int("attempt", attempt))
		if record, err = repo.FindByID(ctx, record.ID); err != nil {
			return nil, err
		}
		if record == nil {
			return nil, domain.NotFound("progress record not found")
		}
	}
}

func (pu *ProgressUseCaseImpl) publish(userID, eventType string, record *ProgressRecord) {
	if pu.Notifier != nil {
		pu.Notifier.Publish(Topic(userID), &Event{Type: eventType, Record: record})
	}
}

// StartCourse return the caller's record, creating an empty one on first access
func (pu *ProgressUseCaseImpl) StartCourse(ctx context.Context, p domain.Principal, courseID string) (*CourseProgress, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.StartCourse", "service")
	defer apmSpan.End()

	if err := requireIdentity(p); err != nil {
		return nil, err
	}
	course, err := pu.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, domain.NotFound("course not found")
	}
	if err := pu.requireEnrollment(ctx, p.UserID, courseID); err != nil {
		return nil, err
	}
	sequence, err := pu.sequence(ctx, courseID)
	if err != nil {
		return nil, err
	}
	record, err := pu.getOrCreate(ctx, p.UserID, courseID)
	if err != nil {
		return nil, err
	}
	return &CourseProgress{record, len(sequence)}, nil
}

// UnlockLecture grant access to lectureID once the lecture before it in the
// course sequence satisfies the gate policy
func (pu *ProgressUseCaseImpl) UnlockLecture(ctx context.Context, p domain.Principal, courseID, lectureID string) (*ProgressRecord, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.UnlockLecture", "service")
	defer apmSpan.End()

	if err := requireIdentity(p); err != nil {
		return nil, err
	}
	courseID, err := pu.resolveCourse(ctx, courseID, lectureID)
	if err != nil {
		return nil, err
	}
	if err := pu.requireEnrollment(ctx, p.UserID, courseID); err != nil {
		return nil, err
	}
	sequence, err := pu.sequence(ctx, courseID)
	if err != nil {
		return nil, err
	}
	record, err := pu.getOrCreate(ctx, p.UserID, courseID)
	if err != nil {
		return nil, err
	}

	updated, err := pu.mutate(ctx, record, func(r *ProgressRecord) error {
		if r.IsUnlocked(lectureID) {
			return domain.Conflict("lecture is already unlocked")
		}
		i := indexOf(sequence, lectureID)
		if i < 0 {
			return domain.NotFound("lecture not found in course")
		}
		if i > 0 && !gateSatisfied(r, sequence[i-1], pu.gate) {
			return domain.Forbidden("previous lecture must be %s first", pu.gate)
		}
		r.UnlockedLectures = append(r.UnlockedLectures, lectureID)
		r.CurrentLectureID = &lectureID
		r.ProgressPercentage = Percentage(len(r.CompletedLectures), len(sequence))
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.ExtractLoggerFromContext(ctx).Info("lecture unlocked",
		zap.String("user.id", p.UserID), zap.String("course.id", courseID), zap.String("lecture.id", lectureID))
	pu.publish(p.UserID, EventLectureUnlocked, updated)
	return updated, nil
}

// MarkLectureCompleted record completion of an unlocked lecture
func (pu *ProgressUseCaseImpl) MarkLectureCompleted(ctx context.Context, p domain.Principal, courseID, lectureID string) (*ProgressRecord, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.MarkLectureCompleted", "service")
	defer apmSpan.End()

	if err := requireIdentity(p); err != nil {
		return nil, err
	}
	courseID, err := pu.resolveCourse(ctx, courseID, lectureID)
	if err != nil {
		return nil, err
	}
	record, err := pu.ProgressRepository.FindByUserCourse(ctx, p.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.NotFound("progress record not found")
	}
	sequence, err := pu.sequence(ctx, courseID)
	if err != nil {
		return nil, err
	}

	updated, err := pu.mutate(ctx, record, func(r *ProgressRecord) error {
		if !r.IsUnlocked(lectureID) {
			return domain.Forbidden("lecture must be unlocked before completion")
		}
		if r.IsCompleted(lectureID) {
			return domain.Conflict("lecture is already completed")
		}
		r.CompletedLectures = append(r.CompletedLectures, lectureID)
		r.ProgressPercentage = Percentage(len(r.CompletedLectures), len(sequence))
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.ExtractLoggerFromContext(ctx).Info("lecture completed",
		zap.String("user.id", p.UserID), zap.String("course.id", courseID), zap.String("lecture.id", lectureID),
		zap.Int("progress.percentage", updated.ProgressPercentage))
	pu.publish(p.UserID, EventLectureCompleted, updated)
	return updated, nil
}

// GetCourseProgress caller's record, a zero projection when not enrolled or not started
func (pu *ProgressUseCaseImpl) GetCourseProgress(ctx context.Context, p domain.Principal, courseID string) (*CourseProgress, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.GetCourseProgress", "service")
	defer apmSpan.End()

	if err := requireIdentity(p); err != nil {
		return nil, err
	}
	course, err := pu.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, domain.NotFound("course not found")
	}
	sequence, err := pu.sequence(ctx, courseID)
	if err != nil {
		return nil, err
	}

	empty := &CourseProgress{pu.emptyRecord(p.UserID, courseID), len(sequence)}
	e, err := pu.Enrollments.FindApprovedEnrollment(ctx, p.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return empty, nil
	}
	record, err := pu.ProgressRepository.FindByUserCourse(ctx, p.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return empty, nil
	}
	return &CourseProgress{record, len(sequence)}, nil
}

func (pu *ProgressUseCaseImpl) list(ctx context.Context, q *ListQuery) (*ListResult, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	records, total, err := pu.ProgressRepository.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Meta: domain.NewPageMeta(q.Page, q.Limit, total),
		Data: records,
	}, nil
}

// GetUserProgress paged records of targetUserID, the caller when empty
func (pu *ProgressUseCaseImpl) GetUserProgress(ctx context.Context, p domain.Principal, targetUserID string, q *ListQuery) (*ListResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.GetUserProgress", "service")
	defer apmSpan.End()

	if targetUserID == "" {
		targetUserID = p.UserID
	}
	if err := domain.Authorize(p, targetUserID, domain.OpViewProgress); err != nil {
		return nil, err
	}
	if q == nil {
		q = new(ListQuery)
	}
	q.UserID = targetUserID
	return pu.list(ctx, q)
}

// ListAllProgress paged records of every user
func (pu *ProgressUseCaseImpl) ListAllProgress(ctx context.Context, p domain.Principal, q *ListQuery) (*ListResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.ListAllProgress", "service")
	defer apmSpan.End()

	if err := domain.Authorize(p, "", domain.OpListAllProgress); err != nil {
		return nil, err
	}
	if q == nil {
		q = new(ListQuery)
	}
	return pu.list(ctx, q)
}

// GetCourseOverview completion figures of a course across users
func (pu *ProgressUseCaseImpl) GetCourseOverview(ctx context.Context, p domain.Principal, courseID string) (*CourseOverview, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.GetCourseOverview", "service")
	defer apmSpan.End()

	if err := domain.Authorize(p, "", domain.OpCourseOverview); err != nil {
		return nil, err
	}
	course, err := pu.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, domain.NotFound("course not found")
	}
	records, err := pu.ProgressRepository.FindByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return ComputeOverview(courseID, records), nil
}

// GetProgressStats aggregate of targetUserID's records, the caller when empty
func (pu *ProgressUseCaseImpl) GetProgressStats(ctx context.Context, p domain.Principal, targetUserID string) (*ProgressStats, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.GetProgressStats", "service")
	defer apmSpan.End()

	if targetUserID == "" {
		targetUserID = p.UserID
	}
	if err := domain.Authorize(p, targetUserID, domain.OpViewStats); err != nil {
		return nil, err
	}
	records, err := pu.ProgressRepository.FindByUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	return ComputeStats(records), nil
}

// DeleteProgress hard delete, owner or elevated only
func (pu *ProgressUseCaseImpl) DeleteProgress(ctx context.Context, p domain.Principal, recordID string) error {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.DeleteProgress", "service")
	defer apmSpan.End()

	if err := requireIdentity(p); err != nil {
		return err
	}
	repo := pu.ProgressRepository
	record, err := repo.FindByID(ctx, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.NotFound("progress record not found")
	}
	if err := domain.Authorize(p, record.UserID, domain.OpDeleteProgress); err != nil {
		return err
	}
	if err := repo.Delete(ctx, recordID); err != nil {
		return err
	}

	logging.ExtractLoggerFromContext(ctx).Info("progress record deleted",
		zap.String("progress.id", recordID), zap.String("user.id", record.UserID), zap.String("deleted_by", p.UserID))
	pu.publish(record.UserID, EventProgressDeleted, record)
	return nil
}
