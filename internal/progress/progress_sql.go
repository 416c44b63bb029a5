package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/uuid"
)

// ProgressSQL ProgressRepository over any ITransactionalDB.
//
// Lecture lists are stored as JSON arrays, a missing current lecture as an empty string.
type ProgressSQL struct {
	Conn          driver.ITransactionalDB
	UUIDGenerator uuid.Generator
}

var _ ProgressRepository = &ProgressSQL{}

func NewProgressRepository(Conn driver.ITransactionalDB, UUIDGenerator uuid.Generator) *ProgressSQL {
	return &ProgressSQL{Conn, UUIDGenerator}
}

const progressColumns = `id, user_id, course_id, unlocked_lectures, completed_lectures, current_lecture_id,
	progress_percentage, last_accessed_at, created_at, updated_at, version`

func (repo *ProgressSQL) query(ctx context.Context, query string, args ...interface{}) ([]*ProgressRecord, error) {
	rows, err := repo.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*ProgressRecord, 0)
	for rows.Next() {
		var (
			r                   = new(ProgressRecord)
			unlocked, completed string
			current             string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.CourseID, &unlocked, &completed, &current,
			&r.ProgressPercentage, &r.LastAccessedAt, &r.CreatedAt, &r.UpdatedAt, &r.Version); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(unlocked), &r.UnlockedLectures); err != nil {
			return nil, errors.Wrapf(err, "corrupted unlocked_lectures of record %s", r.ID)
		}
		if err := json.Unmarshal([]byte(completed), &r.CompletedLectures); err != nil {
			return nil, errors.Wrapf(err, "corrupted completed_lectures of record %s", r.ID)
		}
		if r.UnlockedLectures == nil {
			r.UnlockedLectures = []string{}
		}
		if r.CompletedLectures == nil {
			r.CompletedLectures = []string{}
		}
		if current != "" {
			r.CurrentLectureID = &current
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (repo *ProgressSQL) queryOne(ctx context.Context, query string, args ...interface{}) (*ProgressRecord, error) {
	records, err := repo.query(ctx, query, args...)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

func (repo *ProgressSQL) FindByID(ctx context.Context, id string) (*ProgressRecord, error) {
	r, err := repo.queryOne(ctx, `SELECT `+progressColumns+` FROM progress WHERE id = $1`, id)
	return r, errors.Wrap(err, "ProgressSQL.FindByID")
}

func (repo *ProgressSQL) FindByUserCourse(ctx context.Context, userID, courseID string) (*ProgressRecord, error) {
	r, err := repo.queryOne(ctx, `SELECT `+progressColumns+` FROM progress
	WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	return r, errors.Wrap(err, "ProgressSQL.FindByUserCourse")
}

func (repo *ProgressSQL) FindByUser(ctx context.Context, userID string) ([]*ProgressRecord, error) {
	records, err := repo.query(ctx, `SELECT `+progressColumns+` FROM progress
	WHERE user_id = $1 ORDER BY created_at, id`, userID)
	return records, errors.Wrap(err, "ProgressSQL.FindByUser")
}

func (repo *ProgressSQL) FindByCourse(ctx context.Context, courseID string) ([]*ProgressRecord, error) {
	records, err := repo.query(ctx, `SELECT `+progressColumns+` FROM progress
	WHERE course_id = $1 ORDER BY progress_percentage DESC, id`, courseID)
	return records, errors.Wrap(err, "ProgressSQL.FindByCourse")
}

func encodeLectures(r *ProgressRecord) (unlocked, completed, current string, err error) {
	u, err := json.Marshal(nonNil(r.UnlockedLectures))
	if err != nil {
		return
	}
	c, err := json.Marshal(nonNil(r.CompletedLectures))
	if err != nil {
		return
	}
	if r.CurrentLectureID != nil {
		current = *r.CurrentLectureID
	}
	return string(u), string(c), current, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (repo *ProgressSQL) Create(ctx context.Context, r *ProgressRecord) error {
	if id, err := repo.UUIDGenerator.Generate(); err == nil {
		r.ID = id
	} else {
		return err
	}
	unlocked, completed, current, err := encodeLectures(r)
	if err != nil {
		return errors.Wrap(err, "ProgressSQL.Create")
	}
	r.Version = 1

	_, err = repo.Conn.ExecContext(ctx, `INSERT INTO progress(`+progressColumns+`)
	VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.UserID, r.CourseID, unlocked, completed, current,
		r.ProgressPercentage, r.LastAccessedAt, r.CreatedAt, r.UpdatedAt, r.Version)
	if driver.IsDuplicateKey(err) {
		return driver.ErrDuplicateKey
	}
	return errors.Wrap(err, "ProgressSQL.Create")
}

// Update write the mutable fields when the stored version still equals expectedVersion,
// r.Version is bumped on success
func (repo *ProgressSQL) Update(ctx context.Context, r *ProgressRecord, expectedVersion int64) error {
	unlocked, completed, current, err := encodeLectures(r)
	if err != nil {
		return errors.Wrap(err, "ProgressSQL.Update")
	}

	res, err := repo.Conn.ExecContext(ctx, `UPDATE progress
	SET unlocked_lectures=$1,
			completed_lectures=$2,
			current_lecture_id=$3,
			progress_percentage=$4,
			last_accessed_at=$5,
			updated_at=$6,
			version=$7
	WHERE id = $8 AND version = $9`,
		unlocked, completed, current, r.ProgressPercentage, r.LastAccessedAt, r.UpdatedAt,
		expectedVersion+1, r.ID, expectedVersion)
	if err != nil {
		return errors.Wrap(err, "ProgressSQL.Update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "ProgressSQL.Update")
	}
	if n == 0 {
		return ErrStaleRecord
	}
	r.Version = expectedVersion + 1
	return nil
}

func (repo *ProgressSQL) Delete(ctx context.Context, id string) error {
	_, err := repo.Conn.ExecContext(ctx, `DELETE FROM progress WHERE id = $1`, id)
	return errors.Wrap(err, "ProgressSQL.Delete")
}

// List q must be normalized
func (repo *ProgressSQL) List(ctx context.Context, q *ListQuery) ([]*ProgressRecord, int, error) {
	column, desc, err := q.orderBy()
	if err != nil {
		return nil, 0, err
	}

	var (
		where []string
		args  []interface{}
	)
	if q.UserID != "" {
		args = append(args, q.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if q.CourseID != "" {
		args = append(args, q.CourseID)
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	total, err := repo.count(ctx, `SELECT COUNT(*) FROM progress`+clause, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "ProgressSQL.List")
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	pageArgs := append(args, q.Limit, (q.Page-1)*q.Limit)
	records, err := repo.query(ctx, fmt.Sprintf(`SELECT %s FROM progress%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		progressColumns, clause, column, direction, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "ProgressSQL.List")
	}
	return records, total, nil
}

func (repo *ProgressSQL) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	rows, err := repo.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var total int
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, err
		}
	}
	return total, rows.Err()
}
