package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/pot-code/lms-progress/internal/domain"
	"github.com/pot-code/lms-progress/internal/enrollment"
)

// ProgressRecord one user's progress through one course
type ProgressRecord struct {
	ID                 string   `json:"id"`
	UserID             string   `json:"userId"`
	CourseID           string   `json:"courseId"`
	UnlockedLectures   []string `json:"unlockedLectures"`  // unlock order
	CompletedLectures  []string `json:"completedLectures"` // always a subset of UnlockedLectures
	CurrentLectureID   *string  `json:"currentLectureId"`
	ProgressPercentage int      `json:"progressPercentage"`
	LastAccessedAt     int64    `json:"lastAccessedAt"` // unix milli
	CreatedAt          int64    `json:"createdAt"`
	UpdatedAt          int64    `json:"updatedAt"`
	Version            int64    `json:"-"`
}

// IsUnlocked reports whether lectureID was unlocked
func (r *ProgressRecord) IsUnlocked(lectureID string) bool {
	return contains(r.UnlockedLectures, lectureID)
}

// IsCompleted reports whether lectureID was completed
func (r *ProgressRecord) IsCompleted(lectureID string) bool {
	return contains(r.CompletedLectures, lectureID)
}

func (r *ProgressRecord) clone() *ProgressRecord {
	c := *r
	c.UnlockedLectures = append(make([]string, 0, len(r.UnlockedLectures)+1), r.UnlockedLectures...)
	c.CompletedLectures = append(make([]string, 0, len(r.CompletedLectures)+1), r.CompletedLectures...)
	if r.CurrentLectureID != nil {
		id := *r.CurrentLectureID
		c.CurrentLectureID = &id
	}
	return &c
}

func contains(ids []string, id string) bool {
	return indexOf(ids, id) >= 0
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// CourseProgress record together with the size of the course it is measured against
type CourseProgress struct {
	*ProgressRecord
	TotalLectures int `json:"totalLectures"`
}

// ProgressStats aggregate over every record of a user
type ProgressStats struct {
	TotalCourses      int `json:"totalCourses"`
	CompletedCourses  int `json:"completedCourses"`
	InProgressCourses int `json:"inProgressCourses"`
	TotalLectures     int `json:"totalLectures"` // unlocked lectures across courses
	CompletedLectures int `json:"completedLectures"`
	AverageProgress   int `json:"averageProgress"`
}

// CourseOverview aggregate over every record of a course
type CourseOverview struct {
	CourseID        string            `json:"courseId"`
	TotalUsers      int               `json:"totalUsers"`
	AverageProgress int               `json:"averageProgress"`
	CompletedUsers  int               `json:"completedUsers"`
	CompletionRate  int               `json:"completionRate"`
	Records         []*ProgressRecord `json:"progressData"`
}

// ListQuery filter, sort and page over progress records.
//
// Sort is a field name optionally prefixed with "-" for descending order.
type ListQuery struct {
	UserID   string `query:"userId"`
	CourseID string `query:"courseId"`
	Sort     string `query:"sort"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// DefaultSort newest records first
const DefaultSort = "-createdAt"

var sortColumns = map[string]string{
	"createdAt":          "created_at",
	"lastAccessedAt":     "last_accessed_at",
	"progressPercentage": "progress_percentage",
}

// Normalize fill defaults and reject unknown sort fields
func (q *ListQuery) Normalize() error {
	q.Page, q.Limit = domain.NormalizePage(q.Page, q.Limit)
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	if _, _, err := q.orderBy(); err != nil {
		return err
	}
	return nil
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
	Meta domain.PageMeta   `json:"meta"`
	Data []*ProgressRecord `json:"data"`
}

// GatePolicy state the previous lecture must be in before the next one unlocks
type GatePolicy int

const (
	GateOnUnlocked GatePolicy = iota
	GateOnCompleted
)

// ParseGatePolicy accepts "unlocked" or "completed"
func ParseGatePolicy(s string) (GatePolicy, error) {
	switch s {
	case "", "unlocked":
		return GateOnUnlocked, nil
	case "completed":
		return GateOnCompleted, nil
	}
	return GateOnUnlocked, fmt.Errorf("unknown unlock gate %q", s)
}

func (g GatePolicy) String() string {
	if g == GateOnCompleted {
		return "completed"
	}
	return "unlocked"
}

// Options engine behaviour, plain values only
type Options struct {
	Gate              GatePolicy
	MaxUpdateAttempts int
}

// Event published to the owner after every successful mutation
type Event struct {
	Type   string          `json:"type"`
	Record *ProgressRecord `json:"record"`
}

// event types
const (
	EventLectureUnlocked  = "lecture.unlocked"
	EventLectureCompleted = "lecture.completed"
	EventProgressDeleted  = "progress.deleted"
)

// Topic notification topic of a user
func Topic(userID string) string {
	return "progress." + userID
}

// Notifier receives progress events, implementations must not block
type Notifier interface {
	Publish(topic string, payload interface{})
}

// ErrStaleRecord the record changed since it was read
var ErrStaleRecord = errors.New("progress record was modified concurrently")

type ProgressRepository interface {
	FindByID(ctx context.Context, id string) (*ProgressRecord, error)
	FindByUserCourse(ctx context.Context, userID, courseID string) (*ProgressRecord, error)
	// FindByUser every record of a user, unpaged
	FindByUser(ctx context.Context, userID string) ([]*ProgressRecord, error)
	// FindByCourse every record of a course, highest percentage first
	FindByCourse(ctx context.Context, courseID string) ([]*ProgressRecord, error)
	// Create fails with driver.ErrDuplicateKey when (user, course) already has a record
	Create(ctx context.Context, r *ProgressRecord) error
	// Update fails with ErrStaleRecord when the stored version differs from expectedVersion
	Update(ctx context.Context, r *ProgressRecord, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q *ListQuery) ([]*ProgressRecord, int, error)
}

// EnrollmentRegistry approval lookup
type EnrollmentRegistry interface {
	FindApprovedEnrollment(ctx context.Context, userID, courseID string) (*enrollment.Enrollment, error)
}

type ProgressUseCase interface {
	StartCourse(ctx context.Context, p domain.Principal, courseID string) (*CourseProgress, error)
	// UnlockLecture courseID may be empty, it is then derived from the lecture
	UnlockLecture(ctx context.Context, p domain.Principal, courseID, lectureID string) (*ProgressRecord, error)
	MarkLectureCompleted(ctx context.Context, p domain.Principal, courseID, lectureID string) (*ProgressRecord, error)
	GetCourseProgress(ctx context.Context, p domain.Principal, courseID string) (*CourseProgress, error)
	GetUserProgress(ctx context.Context, p domain.Principal, targetUserID string, q *ListQuery) (*ListResult, error)
	ListAllProgress(ctx context.Context, p domain.Principal, q *ListQuery) (*ListResult, error)
	GetCourseOverview(ctx context.Context, p domain.Principal, courseID string) (*CourseOverview, error)
	GetProgressStats(ctx context.Context, p domain.Principal, targetUserID string) (*ProgressStats, error)
	DeleteProgress(ctx context.Context, p domain.Principal, recordID string) error
}
