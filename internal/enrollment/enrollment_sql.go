package enrollment

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/uuid"
)

type EnrollmentSQL struct {
	Conn          driver.ITransactionalDB
	UUIDGenerator uuid.Generator
}

var _ EnrollmentRepository = &EnrollmentSQL{}

func NewEnrollmentRepository(Conn driver.ITransactionalDB, UUIDGenerator uuid.Generator) *EnrollmentSQL {
	return &EnrollmentSQL{Conn, UUIDGenerator}
}

const enrollmentColumns = `id, user_id, course_id, status, request_message, admin_response, reviewed_by, reviewed_at, created_at`

func (repo *EnrollmentSQL) query(ctx context.Context, query string, args ...interface{}) ([]*Enrollment, error) {
	rows, err := repo.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*Enrollment, 0)
	for rows.Next() {
		e := new(Enrollment)
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.RequestMessage,
			&e.AdminResponse, &e.ReviewedBy, &e.ReviewedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (repo *EnrollmentSQL) findOne(ctx context.Context, query string, args ...interface{}) (*Enrollment, error) {
	result, err := repo.query(ctx, query, args...)
	if err != nil || len(result) == 0 {
		return nil, err
	}
	return result[0], nil
}

func (repo *EnrollmentSQL) FindByID(ctx context.Context, id string) (*Enrollment, error) {
	e, err := repo.findOne(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
	return e, errors.Wrap(err, "EnrollmentSQL.FindByID")
}

func (repo *EnrollmentSQL) FindByUserCourse(ctx context.Context, userID, courseID string) (*Enrollment, error) {
	e, err := repo.findOne(ctx, `SELECT `+enrollmentColumns+` FROM enrollments
	WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	return e, errors.Wrap(err, "EnrollmentSQL.FindByUserCourse")
}

func (repo *EnrollmentSQL) FindApprovedEnrollment(ctx context.Context, userID, courseID string) (*Enrollment, error) {
	e, err := repo.findOne(ctx, `SELECT `+enrollmentColumns+` FROM enrollments
	WHERE user_id = $1 AND course_id = $2 AND status = $3`, userID, courseID, string(StatusApproved))
	return e, errors.Wrap(err, "EnrollmentSQL.FindApprovedEnrollment")
}

func (repo *EnrollmentSQL) SaveEnrollment(ctx context.Context, e *Enrollment) error {
	if id, err := repo.UUIDGenerator.Generate(); err == nil {
		e.ID = id
	} else {
		return err
	}

	_, err := repo.Conn.ExecContext(ctx, `INSERT INTO enrollments(`+enrollmentColumns+`)
	VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.UserID, e.CourseID, string(e.Status), e.RequestMessage, e.AdminResponse, e.ReviewedBy, e.ReviewedAt, e.CreatedAt)
	if driver.IsDuplicateKey(err) {
		return ErrDuplicatedRequest
	}
	return errors.Wrap(err, "EnrollmentSQL.SaveEnrollment")
}

func (repo *EnrollmentSQL) UpdateReview(ctx context.Context, e *Enrollment) error {
	_, err := repo.Conn.ExecContext(ctx, `UPDATE enrollments
	SET status=$1,
			admin_response=$2,
			reviewed_by=$3,
			reviewed_at=$4
	WHERE id = $5`, string(e.Status), e.AdminResponse, e.ReviewedBy, e.ReviewedAt, e.ID)
	return errors.Wrap(err, "EnrollmentSQL.UpdateReview")
}

func (repo *EnrollmentSQL) Delete(ctx context.Context, id string) error {
	_, err := repo.Conn.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	return errors.Wrap(err, "EnrollmentSQL.Delete")
}

// List q must be normalized
func (repo *EnrollmentSQL) List(ctx context.Context, q *ListQuery) ([]*Enrollment, int, error) {
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
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	total, err := repo.count(ctx, `SELECT COUNT(*) FROM enrollments`+clause, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "EnrollmentSQL.List")
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	pageArgs := append(args, q.Limit, (q.Page-1)*q.Limit)
	result, err := repo.query(ctx, fmt.Sprintf(`SELECT %s FROM enrollments%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		enrollmentColumns, clause, column, direction, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "EnrollmentSQL.List")
	}
	return result, total, nil
}

func (repo *EnrollmentSQL) count(ctx context.Context, query string, args ...interface{}) (int, error) {
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
