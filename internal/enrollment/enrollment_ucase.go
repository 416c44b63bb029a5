package enrollment

import (
	"context"
	"time"

	"github.com/pot-code/lms-progress/internal/catalog"
	"github.com/pot-code/lms-progress/internal/domain"
	"github.com/pot-code/lms-progress/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// EnrollmentUseCaseImpl ...
type EnrollmentUseCaseImpl struct {
	EnrollmentRepository EnrollmentRepository
	Catalog              catalog.Catalog
	now                  func() time.Time
}

var _ EnrollmentUseCase = &EnrollmentUseCaseImpl{}

// NewEnrollmentUseCase ...
func NewEnrollmentUseCase(
	EnrollmentRepository EnrollmentRepository,
	Catalog catalog.Catalog,
) *EnrollmentUseCaseImpl {
	return &EnrollmentUseCaseImpl{EnrollmentRepository, Catalog, time.Now}
}

func (eu *EnrollmentUseCaseImpl) nowMilli() int64 {
	return eu.now().UnixNano() / int64(time.Millisecond)
}

// RequestEnrollment file a pending request for the caller
func (eu *EnrollmentUseCaseImpl) RequestEnrollment(ctx context.Context, p domain.Principal, req *Request) (*Enrollment, error) {
	apmSpan, _ := apm.StartSpan(ctx, "EnrollmentUseCaseImpl.RequestEnrollment", "service")
	defer apmSpan.End()

	if p.UserID == "" {
		return nil, domain.Unauthenticated("user not authenticated")
	}
	course, err := eu.Catalog.GetCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, domain.NotFound("course not found")
	}

	repo := eu.EnrollmentRepository
	if existing, err := repo.FindByUserCourse(ctx, p.UserID, req.CourseID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrDuplicatedRequest
	}

	e := &Enrollment{
		UserID:         p.UserID,
		CourseID:       req.CourseID,
		Status:         StatusPending,
		RequestMessage: req.RequestMessage,
		CreatedAt:      eu.nowMilli(),
	}
	if err := repo.SaveEnrollment(ctx, e); err != nil {
		return nil, err
	}
	logging.ExtractLoggerFromContext(ctx).Info("enrollment requested",
		zap.String("user.id", p.UserID), zap.String("course.id", req.CourseID))
	return e, nil
}

// ReviewEnrollment approve or reject a pending request
func (eu *EnrollmentUseCaseImpl) ReviewEnrollment(ctx context.Context, p domain.Principal, id string, review *Review) (*Enrollment, error) {
	apmSpan, _ := apm.StartSpan(ctx, "EnrollmentUseCaseImpl.ReviewEnrollment", "service")
	defer apmSpan.End()

	if err := domain.Authorize(p, "", domain.OpReviewEnrollment); err != nil {
		return nil, err
	}
	if review.Status != StatusApproved && review.Status != StatusRejected {
		return nil, domain.BadRequest("status must be approved or rejected")
	}

	repo := eu.EnrollmentRepository
	e, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.NotFound("enrollment request not found")
	}
	if e.Status != StatusPending {
		return nil, domain.BadRequest("cannot update a request that is not pending")
	}

	e.Status = review.Status
	e.AdminResponse = review.AdminResponse
	e.ReviewedBy = p.UserID
	e.ReviewedAt = eu.nowMilli()
	if err := repo.UpdateReview(ctx, e); err != nil {
		return nil, err
	}
	logging.ExtractLoggerFromContext(ctx).Info("enrollment reviewed",
		zap.String("enrollment.id", e.ID),
		zap.String("enrollment.status", string(e.Status)),
		zap.String("reviewer.id", p.UserID))
	return e, nil
}

// GetEnrollment owner or elevated only
func (eu *EnrollmentUseCaseImpl) GetEnrollment(ctx context.Context, p domain.Principal, id string) (*Enrollment, error) {
	apmSpan, _ := apm.StartSpan(ctx, "EnrollmentUseCaseImpl.GetEnrollment", "service")
	defer apmSpan.End()

	if p.UserID == "" {
		return nil, domain.Unauthenticated("user not authenticated")
	}
	e, err := eu.EnrollmentRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.NotFound("enrollment request not found")
	}
	if err := domain.Authorize(p, e.UserID, domain.OpViewEnrollment); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEnrollmentStatus caller's request for a course, if any
func (eu *EnrollmentUseCaseImpl) GetEnrollmentStatus(ctx context.Context, p domain.Principal, courseID string) (*EnrollmentStatus, error) {
	apmSpan, _ := apm.StartSpan(ctx, "EnrollmentUseCaseImpl.GetEnrollmentStatus", "service")
	defer apmSpan.End()

	if p.UserID == "" {
		return nil, domain.Unauthenticated("user not authenticated")
	}
	e, err := eu.EnrollmentRepository.FindByUserCourse(ctx, p.UserID, courseID)
	if err != nil {
		return nil, err
	}
	status := &EnrollmentStatus{HasRequest: e != nil, Request: e}
	if e != nil {
		status.Status = &e.Status
	}
	return status, nil
}

func (eu *EnrollmentUseCaseImpl) list(ctx context.Context, q *ListQuery) (*ListResult, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	requests, total, err := eu.EnrollmentRepository.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Meta: domain.NewPageMeta(q.Page, q.Limit, total),
		Data: requests,
	}, nil
}

// ListMyRequests paged requests filed by the caller
func (eu *EnrollmentUseCaseImpl) ListMyRequests(ctx context.Context, p domain.Principal, q *ListQuery) (*ListResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "EnrollmentUseCaseImpl.ListMyRequests", "service")
	defer apmSpan.End()

	if err := domain.Authorize(p, p.UserID, domain.OpViewEnrollment); err != nil {
		return nil, err
	}
	if q == nil {
		q = new(ListQuery)
	}
	q.UserID = p.UserID
	return eu.list(ctx, q)
}

// ListAllRequests paged requests of every user
func (eu *EnrollmentUseCaseImpl) ListAllRequests(ctx context.Context, p domain.Principal, q *ListQuery) (*ListResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "EnrollmentUseCaseImpl.ListAllRequests", "service")
	defer apmSpan.End()

	if err := domain.Authorize(p, "", domain.OpListAllEnrollments); err != nil {
		return nil, err
	}
	if q == nil {
		q = new(ListQuery)
	}
	return eu.list(ctx, q)
}

// DeleteEnrollment owners may only withdraw pending requests, elevated callers delete any
func (eu *EnrollmentUseCaseImpl) DeleteEnrollment(ctx context.Context, p domain.Principal, id string) error {
	apmSpan, _ := apm.StartSpan(ctx, "EnrollmentUseCaseImpl.DeleteEnrollment", "service")
	defer apmSpan.End()

	if p.UserID == "" {
		return domain.Unauthenticated("user not authenticated")
	}
	repo := eu.EnrollmentRepository
	e, err := repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return domain.NotFound("enrollment request not found")
	}
	if err := domain.Authorize(p, e.UserID, domain.OpDeleteEnrollment); err != nil {
		return err
	}
	if !p.IsElevated() && e.Status != StatusPending {
		return domain.BadRequest("cannot delete a request that is not pending")
	}

	if err := repo.Delete(ctx, e.ID); err != nil {
		return err
	}
	logging.ExtractLoggerFromContext(ctx).Info("enrollment deleted",
		zap.String("enrollment.id", e.ID),
		zap.String("enrollment.status", string(e.Status)),
		zap.String("user.id", p.UserID))
	return nil
}
