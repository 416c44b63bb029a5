// Package catalogtest seeds catalog tables for tests of the packages built on top of the catalog
package catalogtest

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pot-code/lms-progress/internal/catalog"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
)

func SaveCourse(ctx context.Context, conn driver.ITransactionalDB, course *catalog.Course) error {
	_, err := conn.ExecContext(ctx, `INSERT INTO courses(id, title, created_at) VALUES($1,$2,$3)`,
		course.ID, course.Title, course.CreatedAt)
	return errors.Wrap(err, "catalogtest.SaveCourse")
}

func SaveModule(ctx context.Context, conn driver.ITransactionalDB, module *catalog.Module) error {
	_, err := conn.ExecContext(ctx, `INSERT INTO modules(id, course_id, module_number, title) VALUES($1,$2,$3,$4)`,
		module.ID, module.CourseID, module.ModuleNumber, module.Title)
	return errors.Wrap(err, "catalogtest.SaveModule")
}

func SaveLecture(ctx context.Context, conn driver.ITransactionalDB, lecture *catalog.Lecture) error {
	_, err := conn.ExecContext(ctx, `INSERT INTO lectures(id, module_id, title, lecture_order, is_published)
	VALUES($1,$2,$3,$4,$5)`, lecture.ID, lecture.ModuleID, lecture.Title, lecture.Order, lecture.IsPublished)
	return errors.Wrap(err, "catalogtest.SaveLecture")
}
