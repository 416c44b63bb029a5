package catalog

import "context"

type Course struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
}

type Module struct {
	ID           string `json:"id"`
	CourseID     string `json:"courseId"`
	ModuleNumber int    `json:"moduleNumber"`
	Title        string `json:"title"`
}

type Lecture struct {
	ID          string `json:"id"`
	ModuleID    string `json:"moduleId"`
	Title       string `json:"title"`
	Order       int    `json:"order"`
	IsPublished bool   `json:"isPublished"`
}

// Catalog read access to courses, modules and lectures.
// Lookups return nil without error when the row does not exist.
type Catalog interface {
	GetCourse(ctx context.Context, courseID string) (*Course, error)
	GetModule(ctx context.Context, moduleID string) (*Module, error)
	GetLecture(ctx context.Context, lectureID string) (*Lecture, error)
	// ListPublishedLecturesOrdered published lectures of a course ordered by
	// module number, then lecture order, then id
	ListPublishedLecturesOrdered(ctx context.Context, courseID string) ([]*Lecture, error)
}

// LectureIDs ids of lectures in the given order
func LectureIDs(lectures []*Lecture) []string {
	ids := make([]string, len(lectures))
	for i, l := range lectures {
		ids[i] = l.ID
	}
	return ids
}
