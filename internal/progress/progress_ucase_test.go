package progress

import (
	"context"
	"testing"
	"time"

	"github.com/pot-code/lms-progress/internal/catalog"
	"github.com/pot-code/lms-progress/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.Principal{UserID: "alice", Role: domain.RoleUser}
	bob   = domain.Principal{UserID: "bob", Role: domain.RoleUser}
	admin = domain.Principal{UserID: "root", Role: domain.RoleAdmin}
)

type engineFixture struct {
	engine   *ProgressUseCaseImpl
	repo     *memoryRepo
	catalog  *fakeCatalog
	enrolled fakeEnrollments
	notifier *recordingNotifier
}

func newEngineFixture(gate GatePolicy) *engineFixture {
	f := &engineFixture{
		repo:     newMemoryRepo(),
		catalog:  newFakeCatalog(),
		enrolled: fakeEnrollments{},
		notifier: new(recordingNotifier),
	}
	f.catalog.addCourse("c1", "L1", "L2", "L3")
	f.catalog.addCourse("c2", "X1")
	f.catalog.addCourse("empty")
	f.enrolled.approve("alice", "c1")
	f.engine = NewProgressUseCase(f.repo, f.catalog, f.enrolled, f.notifier, &Options{Gate: gate, MaxUpdateAttempts: 3})
	f.engine.now = func() time.Time { return time.Unix(1700000000, 0) }
	return f
}

func requireKind(t *testing.T, kind domain.ErrorKind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, domain.KindOf(err), err.Error())
}

func TestScenarioSequentialUnlock(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	e := f.engine

	r, err := e.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	assert.Equal(t, []string{"L1"}, r.UnlockedLectures)
	assert.Equal(t, "L1", *r.CurrentLectureID)

	_, err = e.UnlockLecture(ctx, alice, "c1", "L3")
	requireKind(t, domain.KindForbidden, err)

	r, err = e.MarkLectureCompleted(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	assert.Equal(t, 33, r.ProgressPercentage)

	_, err = e.UnlockLecture(ctx, alice, "c1", "L2")
	require.NoError(t, err)
	r, err = e.MarkLectureCompleted(ctx, alice, "c1", "L2")
	require.NoError(t, err)
	assert.Equal(t, 67, r.ProgressPercentage)

	_, err = e.UnlockLecture(ctx, alice, "c1", "L3")
	require.NoError(t, err)
	r, err = e.MarkLectureCompleted(ctx, alice, "c1", "L3")
	require.NoError(t, err)
	assert.Equal(t, 100, r.ProgressPercentage)
	assert.Equal(t, []string{"L1", "L2", "L3"}, r.UnlockedLectures)
	assert.Equal(t, []string{"L1", "L2", "L3"}, r.CompletedLectures)

	events := f.notifier.events[Topic("alice")]
	require.Len(t, events, 6)
	assert.Equal(t, EventLectureUnlocked, events[0].Type)
	assert.Equal(t, EventLectureCompleted, events[5].Type)
}

func TestScenarioNoRecord(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)

	for _, p := range []domain.Principal{alice, bob} {
		cp, err := f.engine.GetCourseProgress(ctx, p, "c1")
		require.NoError(t, err)
		assert.Empty(t, cp.UnlockedLectures)
		assert.Empty(t, cp.CompletedLectures)
		assert.NotNil(t, cp.UnlockedLectures)
		assert.Nil(t, cp.CurrentLectureID)
		assert.Equal(t, 0, cp.ProgressPercentage)
		assert.Equal(t, 3, cp.TotalLectures)
	}
	assert.Empty(t, f.repo.records, "reading progress must not create records")

	_, err := f.engine.GetCourseProgress(ctx, alice, "missing")
	requireKind(t, domain.KindNotFound, err)
}

func TestGetCourseProgressReturnsRecord(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	_, err := f.engine.UnlockLecture(ctx, alice, "", "L1")
	require.NoError(t, err)

	cp, err := f.engine.GetCourseProgress(ctx, alice, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"L1"}, cp.UnlockedLectures)
	assert.NotEmpty(t, cp.ID)
}

func TestUnlockLectureErrors(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	e := f.engine

	_, err := e.UnlockLecture(ctx, domain.Principal{}, "c1", "L1")
	requireKind(t, domain.KindUnauthenticated, err)

	_, err = e.UnlockLecture(ctx, alice, "c1", "")
	requireKind(t, domain.KindBadRequest, err)

	_, err = e.UnlockLecture(ctx, alice, "c1", "nope")
	requireKind(t, domain.KindNotFound, err)

	// cross-course reference
	_, err = e.UnlockLecture(ctx, alice, "c1", "X1")
	requireKind(t, domain.KindBadRequest, err)

	// not enrolled
	_, err = e.UnlockLecture(ctx, bob, "c1", "L1")
	requireKind(t, domain.KindForbidden, err)

	_, err = e.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	before, _ := f.repo.FindByUserCourse(ctx, "alice", "c1")
	_, err = e.UnlockLecture(ctx, alice, "c1", "L1")
	requireKind(t, domain.KindConflict, err)
	after, _ := f.repo.FindByUserCourse(ctx, "alice", "c1")
	assert.Equal(t, before, after, "a rejected unlock leaves the record unchanged")
}

func TestUnlockUnpublishedLecture(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	// known to the catalog but not part of the published sequence
	f.catalog.lectures["draft"] = &catalog.Lecture{ID: "draft", ModuleID: "c1-m1", Order: 4}
	_, err := f.engine.UnlockLecture(ctx, alice, "c1", "draft")
	requireKind(t, domain.KindNotFound, err)
}

func TestMarkLectureCompletedErrors(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	e := f.engine

	_, err := e.MarkLectureCompleted(ctx, alice, "c1", "L1")
	requireKind(t, domain.KindNotFound, err)

	_, err = e.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)

	_, err = e.MarkLectureCompleted(ctx, alice, "c1", "L2")
	requireKind(t, domain.KindForbidden, err)

	_, err = e.MarkLectureCompleted(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	_, err = e.MarkLectureCompleted(ctx, alice, "c1", "L1")
	requireKind(t, domain.KindConflict, err)

	_, err = e.MarkLectureCompleted(ctx, alice, "c2", "L1")
	requireKind(t, domain.KindBadRequest, err)
}

func TestGateOnCompleted(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnCompleted)
	e := f.engine

	_, err := e.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	_, err = e.UnlockLecture(ctx, alice, "c1", "L2")
	requireKind(t, domain.KindForbidden, err)
	assert.Contains(t, err.Error(), "completed")

	_, err = e.MarkLectureCompleted(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	_, err = e.UnlockLecture(ctx, alice, "c1", "L2")
	assert.NoError(t, err)
}

func TestGateOnUnlockedIsDefault(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	f.engine = NewProgressUseCase(f.repo, f.catalog, f.enrolled, nil, nil)

	_, err := f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	// L1 unlocked but not completed
	_, err = f.engine.UnlockLecture(ctx, alice, "c1", "L2")
	assert.NoError(t, err)
}

func TestDuplicateKeyOnCreateRereads(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	f.repo.beforeCreate = func(repo *memoryRepo, r *ProgressRecord) {
		repo.beforeCreate = nil
		// a concurrent request creates the record first
		repo.insert(&ProgressRecord{UserID: r.UserID, CourseID: r.CourseID,
			UnlockedLectures: []string{}, CompletedLectures: []string{}})
	}

	r, err := f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	assert.Equal(t, []string{"L1"}, r.UnlockedLectures)
	assert.Equal(t, 1, f.repo.creates)
	assert.Len(t, f.repo.records, 1)
}

func TestStaleUpdateIsRetried(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	_, err := f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)

	f.repo.beforeUpdate = func(repo *memoryRepo, r *ProgressRecord) {
		repo.beforeUpdate = nil
		// L2 gets unlocked by a concurrent request between our read and write
		repo.touch(r.ID, func(stored *ProgressRecord) {
			stored.UnlockedLectures = append(stored.UnlockedLectures, "L2")
		})
	}
	r, err := f.engine.MarkLectureCompleted(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "L2"}, r.UnlockedLectures, "concurrent unlock must not be lost")
	assert.Equal(t, []string{"L1"}, r.CompletedLectures)
	assert.Equal(t, 33, r.ProgressPercentage)
}

func TestStaleUpdateRevalidates(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	_, err := f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)

	f.repo.beforeUpdate = func(repo *memoryRepo, r *ProgressRecord) {
		repo.beforeUpdate = nil
		repo.touch(r.ID, func(stored *ProgressRecord) {
			stored.UnlockedLectures = append(stored.UnlockedLectures, "L2")
		})
	}
	_, err = f.engine.UnlockLecture(ctx, alice, "c1", "L2")
	requireKind(t, domain.KindConflict, err)
}

func TestStaleUpdateGivesUp(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	_, err := f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	updates := f.repo.updates

	f.repo.beforeUpdate = func(repo *memoryRepo, r *ProgressRecord) {
		repo.touch(r.ID, func(*ProgressRecord) {})
	}
	_, err = f.engine.MarkLectureCompleted(ctx, alice, "c1", "L1")
	requireKind(t, domain.KindConflict, err)
	assert.Equal(t, 3, f.repo.updates-updates)
}

func TestStartCourse(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)

	cp, err := f.engine.StartCourse(ctx, alice, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, cp.TotalLectures)
	again, err := f.engine.StartCourse(ctx, alice, "c1")
	require.NoError(t, err)
	assert.Equal(t, cp.ID, again.ID)

	_, err = f.engine.StartCourse(ctx, bob, "c1")
	requireKind(t, domain.KindForbidden, err)
	_, err = f.engine.StartCourse(ctx, alice, "missing")
	requireKind(t, domain.KindNotFound, err)
}

func TestEmptyCourseHasZeroPercentage(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	f.enrolled.approve("alice", "empty")

	cp, err := f.engine.StartCourse(ctx, alice, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, cp.TotalLectures)
	assert.Equal(t, 0, cp.ProgressPercentage)
}

func TestUserProgressAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	f.enrolled.approve("alice", "c2")
	_, err := f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	_, err = f.engine.UnlockLecture(ctx, alice, "c2", "X1")
	require.NoError(t, err)

	res, err := f.engine.GetUserProgress(ctx, alice, "", &ListQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.PageMeta{Page: 1, Limit: 1, Total: 2, TotalPage: 2}, res.Meta)
	assert.Len(t, res.Data, 1)

	_, err = f.engine.GetUserProgress(ctx, bob, "alice", nil)
	requireKind(t, domain.KindForbidden, err)

	res, err = f.engine.GetUserProgress(ctx, admin, "alice", &ListQuery{CourseID: "c2"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Meta.Total)

	_, err = f.engine.GetUserProgress(ctx, alice, "", &ListQuery{Sort: "password"})
	requireKind(t, domain.KindBadRequest, err)

	_, err = f.engine.ListAllProgress(ctx, alice, nil)
	requireKind(t, domain.KindForbidden, err)
	res, err = f.engine.ListAllProgress(ctx, admin, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Meta.Total)
}

func TestProgressStats(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	f.enrolled.approve("alice", "c2")
	_, err := f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	_, err = f.engine.MarkLectureCompleted(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	_, err = f.engine.UnlockLecture(ctx, alice, "c2", "X1")
	require.NoError(t, err)
	_, err = f.engine.MarkLectureCompleted(ctx, alice, "c2", "X1")
	require.NoError(t, err)

	stats, err := f.engine.GetProgressStats(ctx, alice, "")
	require.NoError(t, err)
	assert.Equal(t, &ProgressStats{
		TotalCourses:      2,
		CompletedCourses:  1,
		InProgressCourses: 1,
		TotalLectures:     2,
		CompletedLectures: 2,
		AverageProgress:   67, // (33 + 100) / 2 = 66.5
	}, stats)

	_, err = f.engine.GetProgressStats(ctx, bob, "alice")
	requireKind(t, domain.KindForbidden, err)
	_, err = f.engine.GetProgressStats(ctx, admin, "alice")
	assert.NoError(t, err)
}

func TestCourseOverview(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	f.enrolled.approve("bob", "c1")
	_, err := f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	_, err = f.engine.UnlockLecture(ctx, bob, "c1", "L1")
	require.NoError(t, err)
	_, err = f.engine.MarkLectureCompleted(ctx, bob, "c1", "L1")
	require.NoError(t, err)

	_, err = f.engine.GetCourseOverview(ctx, alice, "c1")
	requireKind(t, domain.KindForbidden, err)

	overview, err := f.engine.GetCourseOverview(ctx, admin, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, overview.TotalUsers)
	assert.Equal(t, 17, overview.AverageProgress)
	assert.Equal(t, 0, overview.CompletionRate)
	assert.Equal(t, "bob", overview.Records[0].UserID)

	_, err = f.engine.GetCourseOverview(ctx, admin, "missing")
	requireKind(t, domain.KindNotFound, err)
}

func TestDeleteProgress(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(GateOnUnlocked)
	r, err := f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)

	err = f.engine.DeleteProgress(ctx, bob, r.ID)
	requireKind(t, domain.KindForbidden, err)
	err = f.engine.DeleteProgress(ctx, domain.Principal{}, r.ID)
	requireKind(t, domain.KindUnauthenticated, err)
	err = f.engine.DeleteProgress(ctx, alice, "missing")
	requireKind(t, domain.KindNotFound, err)

	require.NoError(t, f.engine.DeleteProgress(ctx, alice, r.ID))
	assert.Empty(t, f.repo.records)
	events := f.notifier.events[Topic("alice")]
	assert.Equal(t, EventProgressDeleted, events[len(events)-1].Type)

	r, err = f.engine.UnlockLecture(ctx, alice, "c1", "L1")
	require.NoError(t, err)
	assert.NoError(t, f.engine.DeleteProgress(ctx, admin, r.ID))
}
