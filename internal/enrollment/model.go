package enrollment

import (
	"context"

	"github.com/pot-code/lms-progress/internal/domain"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Enrollment struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	CourseID       string `json:"courseId"`
	Status         Status `json:"status"`
	RequestMessage string `json:"requestMessage"`
	AdminResponse  string `json:"adminResponse,omitempty"`
	ReviewedBy     string `json:"reviewedBy,omitempty"`
	ReviewedAt     int64  `json:"reviewedAt,omitempty"` // unix milli
	CreatedAt      int64  `json:"createdAt"`
}

// Request enrollment request form
type Request struct {
	CourseID       string `json:"courseId" validate:"required"`
	RequestMessage string `json:"requestMessage" validate:"max=500"`
}

// Review admin decision on a pending request
type Review struct {
	Status        Status `json:"status" validate:"required,oneof=approved rejected"`
	AdminResponse string `json:"adminResponse" validate:"max=500"`
}

// EnrollmentStatus caller's request state for a course
type EnrollmentStatus struct {
	HasRequest bool        `json:"hasRequest"`
	Status     *Status     `json:"status"`
	Request    *Enrollment `json:"request"`
}

// ListQuery filter, sort and page over enrollment requests.
//
// Sort is a field name optionally prefixed with "-" for descending order.
type ListQuery struct {
	UserID   string `query:"userId"`
	CourseID string `query:"courseId"`
	Status   Status `query:"status" validate:"omitempty,oneof=pending approved rejected"`
	Sort     string `query:"sort"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// DefaultSort newest requests first
const DefaultSort = "-createdAt"

var sortColumns = map[string]string{
	"createdAt":  "created_at",
	"reviewedAt": "reviewed_at",
}

// Normalize fill defaults and reject unknown sort fields
func (q *ListQuery) Normalize() error {
	q.Page, q.Limit = domain.NormalizePage(q.Page, q.Limit)
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	_, _, err := q.orderBy()
	return err
}

func (q *ListQuery) orderBy() (column string, desc bool, err error) {
	field := q.Sort
	if len(field) > 0 && field[0] == '-' {
		desc = true
		field = field[1:]
	}
	column, ok := sortColumns[field]
	if !ok {
		return "", false, domain.BadRequest("unsupported sort field %q", field)
	}
	return column, desc, nil
}

type ListResult struct {
	Meta domain.PageMeta `json:"meta"`
	Data []*Enrollment   `json:"data"`
}

// ErrDuplicatedRequest one request per user and course
var ErrDuplicatedRequest = domain.Conflict("enrollment request already exists for this course")

type EnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*Enrollment, error)
	FindByUserCourse(ctx context.Context, userID, courseID string) (*Enrollment, error)
	// FindApprovedEnrollment nil when the user holds no approved enrollment for the course
	FindApprovedEnrollment(ctx context.Context, userID, courseID string) (*Enrollment, error)
	SaveEnrollment(ctx context.Context, e *Enrollment) error
	UpdateReview(ctx context.Context, e *Enrollment) error
	Delete(ctx context.Context, id string) error
	// List q must be normalized, returns the page and the total count of matches
	List(ctx context.Context, q *ListQuery) ([]*Enrollment, int, error)
}

type EnrollmentUseCase interface {
	RequestEnrollment(ctx context.Context, p domain.Principal, req *Request) (*Enrollment, error)
	ReviewEnrollment(ctx context.Context, p domain.Principal, id string, review *Review) (*Enrollment, error)
	GetEnrollment(ctx context.Context, p domain.Principal, id string) (*Enrollment, error)
	GetEnrollmentStatus(ctx context.Context, p domain.Principal, courseID string) (*EnrollmentStatus, error)
	ListMyRequests(ctx context.Context, p domain.Principal, q *ListQuery) (*ListResult, error)
	ListAllRequests(ctx context.Context, p domain.Principal, q *ListQuery) (*ListResult, error)
	DeleteEnrollment(ctx context.Context, p domain.Principal, id string) error
}
