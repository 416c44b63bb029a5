package catalog

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
)

type CatalogSQL struct {
	Conn driver.ITransactionalDB
}

var _ Catalog = &CatalogSQL{}

func NewCatalogRepository(Conn driver.ITransactionalDB) *CatalogSQL {
	return &CatalogSQL{Conn}
}

func (repo *CatalogSQL) GetCourse(ctx context.Context, courseID string) (*Course, error) {
	rows, err := repo.Conn.QueryContext(ctx, `SELECT id, title, created_at FROM courses WHERE id = $1`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "CatalogSQL.GetCourse")
	}
	defer rows.Close()

	if rows.Next() {
		course := new(Course)
		if err := rows.Scan(&course.ID, &course.Title, &course.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "CatalogSQL.GetCourse")
		}
		return course, nil
	}
	return nil, errors.Wrap(rows.Err(), "CatalogSQL.GetCourse")
}

func (repo *CatalogSQL) GetModule(ctx context.Context, moduleID string) (*Module, error) {
	rows, err := repo.Conn.QueryContext(ctx, `SELECT id, course_id, module_number, title FROM modules WHERE id = $1`, moduleID)
	if err != nil {
		return nil, errors.Wrap(err, "CatalogSQL.GetModule")
	}
	defer rows.Close()

	if rows.Next() {
		module := new(Module)
		if err := rows.Scan(&module.ID, &module.CourseID, &module.ModuleNumber, &module.Title); err != nil {
			return nil, errors.Wrap(err, "CatalogSQL.GetModule")
		}
		return module, nil
	}
	return nil, errors.Wrap(rows.Err(), "CatalogSQL.GetModule")
}

func (repo *CatalogSQL) GetLecture(ctx context.Context, lectureID string) (*Lecture, error) {
	rows, err := repo.Conn.QueryContext(ctx, `SELECT id, module_id, title, lecture_order, is_published
	FROM lectures WHERE id = $1`, lectureID)
	if err != nil {
		return nil, errors.Wrap(err, "CatalogSQL.GetLecture")
	}
	defer rows.Close()

	if rows.Next() {
		lecture := new(Lecture)
		if err := rows.Scan(&lecture.ID, &lecture.ModuleID, &lecture.Title, &lecture.Order, &lecture.IsPublished); err != nil {
			return nil, errors.Wrap(err, "CatalogSQL.GetLecture")
		}
		return lecture, nil
	}
	return nil, errors.Wrap(rows.Err(), "CatalogSQL.GetLecture")
}

func (repo *CatalogSQL) ListPublishedLecturesOrdered(ctx context.Context, courseID string) ([]*Lecture, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    l.id, l.module_id, l.title, l.lecture_order, l.is_published
FROM
    lectures l
        INNER JOIN
    modules m ON (m.id = l.module_id)
WHERE
    m.course_id = $1 AND l.is_published = $2
ORDER BY m.module_number, l.lecture_order, l.id
	`, courseID, true)
	if err != nil {
		return nil, errors.Wrap(err, "CatalogSQL.ListPublishedLecturesOrdered")
	}
	defer rows.Close()

	result := make([]*Lecture, 0)
	for rows.Next() {
		lecture := new(Lecture)
		if err := rows.Scan(&lecture.ID, &lecture.ModuleID, &lecture.Title, &lecture.Order, &lecture.IsPublished); err != nil {
			return nil, errors.Wrap(err, "CatalogSQL.ListPublishedLecturesOrdered")
		}
		result = append(result, lecture)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "CatalogSQL.ListPublishedLecturesOrdered")
	}
	return result, nil
}
