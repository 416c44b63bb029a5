package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pot-code/lms-progress/internal/catalog"
	"github.com/pot-code/lms-progress/internal/enrollment"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
)

// memoryRepo ProgressRepository kept in a map, hooks run before the real work
type memoryRepo struct {
	mu           sync.Mutex
	records      map[string]*ProgressRecord
	seq          int
	creates      int
	updates      int
	beforeCreate func(repo *memoryRepo, r *ProgressRecord)
	beforeUpdate func(repo *memoryRepo, r *ProgressRecord)
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]*ProgressRecord)}
}

// insert bypass hooks, used to simulate concurrent writers
func (m *memoryRepo) insert(r *ProgressRecord) *ProgressRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.ID = fmt.Sprintf("p%d", m.seq)
	r.Version = 1
	m.records[r.ID] = r.clone()
	return r
}

// touch apply change to the stored record and bump its version
func (m *memoryRepo) touch(id string, change func(*ProgressRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[id]
	change(r)
	r.Version++
}

func (m *memoryRepo) FindByID(ctx context.Context, id string) (*ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return r.clone(), nil
	}
	return nil, nil
}

func (m *memoryRepo) findByUserCourse(userID, courseID string) *ProgressRecord {
	for _, r := range m.records {
		if r.UserID == userID && r.CourseID == courseID {
			return r
		}
	}
	return nil
}

func (m *memoryRepo) FindByUserCourse(ctx context.Context, userID, courseID string) (*ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.findByUserCourse(userID, courseID); r != nil {
		return r.clone(), nil
	}
	return nil, nil
}

func (m *memoryRepo) filter(keep func(*ProgressRecord) bool) []*ProgressRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*ProgressRecord, 0)
	for _, r := range m.records {
		if keep(r) {
			result = append(result, r.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *memoryRepo) FindByUser(ctx context.Context, userID string) ([]*ProgressRecord, error) {
	return m.filter(func(r *ProgressRecord) bool { return r.UserID == userID }), nil
}

func (m *memoryRepo) FindByCourse(ctx context.Context, courseID string) ([]*ProgressRecord, error) {
	result := m.filter(func(r *ProgressRecord) bool { return r.CourseID == courseID })
	sort.SliceStable(result, func(i, j int) bool { return result[i].ProgressPercentage > result[j].ProgressPercentage })
	return result, nil
}

func (m *memoryRepo) Create(ctx context.Context, r *ProgressRecord) error {
	if m.beforeCreate != nil {
		m.beforeCreate(m, r)
	}
	m.mu.Lock()
	m.creates++
	if m.findByUserCourse(r.UserID, r.CourseID) != nil {
		m.mu.Unlock()
		return driver.ErrDuplicateKey
	}
	m.mu.Unlock()
	m.insert(r)
	return nil
}

func (m *memoryRepo) Update(ctx context.Context, r *ProgressRecord, expectedVersion int64) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(m, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	stored, ok := m.records[r.ID]
	if !ok || stored.Version != expectedVersion {
		return ErrStaleRecord
	}
	r.Version = expectedVersion + 1
	m.records[r.ID] = r.clone()
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memoryRepo) List(ctx context.Context, q *ListQuery) ([]*ProgressRecord, int, error) {
	all := m.filter(func(r *ProgressRecord) bool {
		return (q.UserID == "" || r.UserID == q.UserID) && (q.CourseID == "" || r.CourseID == q.CourseID)
	})
	start := (q.Page - 1) * q.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

// fakeCatalog single module per course, lectures in slice order
type fakeCatalog struct {
	courses  map[string]*catalog.Course
	modules  map[string]*catalog.Module
	lectures map[string]*catalog.Lecture
	ordered  map[string][]*catalog.Lecture
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		courses:  make(map[string]*catalog.Course),
		modules:  make(map[string]*catalog.Module),
		lectures: make(map[string]*catalog.Lecture),
		ordered:  make(map[string][]*catalog.Lecture),
	}
}

// addCourse lecture ids are published in the given order
func (f *fakeCatalog) addCourse(courseID string, lectureIDs ...string) {
	f.courses[courseID] = &catalog.Course{ID: courseID, Title: courseID}
	moduleID := courseID + "-m1"
	f.modules[moduleID] = &catalog.Module{ID: moduleID, CourseID: courseID, ModuleNumber: 1}
	f.ordered[courseID] = []*catalog.Lecture{}
	for i, id := range lectureIDs {
		l := &catalog.Lecture{ID: id, ModuleID: moduleID, Order: i + 1, IsPublished: true}
		f.lectures[id] = l
		f.ordered[courseID] = append(f.ordered[courseID], l)
	}
}

func (f *fakeCatalog) GetCourse(ctx context.Context, courseID string) (*catalog.Course, error) {
	return f.courses[courseID], nil
}

func (f *fakeCatalog) GetModule(ctx context.Context, moduleID string) (*catalog.Module, error) {
	return f.modules[moduleID], nil
}

func (f *fakeCatalog) GetLecture(ctx context.Context, lectureID string) (*catalog.Lecture, error) {
	return f.lectures[lectureID], nil
}

func (f *fakeCatalog) ListPublishedLecturesOrdered(ctx context.Context, courseID string) ([]*catalog.Lecture, error) {
	return f.ordered[courseID], nil
}

type fakeEnrollments map[string]bool

func (f fakeEnrollments) approve(userID, courseID string) {
	f[userID+"/"+courseID] = true
}

func (f fakeEnrollments) FindApprovedEnrollment(ctx context.Context, userID, courseID string) (*enrollment.Enrollment, error) {
	if f[userID+"/"+courseID] {
		return &enrollment.Enrollment{UserID: userID, CourseID: courseID, Status: enrollment.StatusApproved}, nil
	}
	return nil, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]*Event
}

func (n *recordingNotifier) Publish(topic string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[string][]*Event)
	}
	n.events[topic] = append(n.events[topic], payload.(*Event))
}
