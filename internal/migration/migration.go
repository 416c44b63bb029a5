// Package migration holds the schema shared by every supported driver.
//
// Statements stick to the subset understood by mysql, postgres and sqlite: no
// driver specific types, no defaults on TEXT columns, no NULLs where a zero value will do.
package migration

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/logging"
	"go.uber.org/zap"
)

type table struct {
	name string
	ddl  string
}

var tables = []table{
	{"users", `CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		username VARCHAR(64) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL,
		login_retry INTEGER NOT NULL,
		last_login BIGINT NOT NULL
	)`},
	{"courses", `CREATE TABLE IF NOT EXISTS courses (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		created_at BIGINT NOT NULL
	)`},
	{"modules", `CREATE TABLE IF NOT EXISTS modules (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		course_id VARCHAR(64) NOT NULL,
		module_number INTEGER NOT NULL,
		title VARCHAR(255) NOT NULL
	)`},
	{"lectures", `CREATE TABLE IF NOT EXISTS lectures (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		module_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		lecture_order INTEGER NOT NULL,
		is_published BOOLEAN NOT NULL
	)`},
	{"enrollments", `CREATE TABLE IF NOT EXISTS enrollments (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		course_id VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		request_message TEXT NOT NULL,
		admin_response TEXT NOT NULL,
		reviewed_by VARCHAR(64) NOT NULL,
		reviewed_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		UNIQUE (user_id, course_id)
	)`},
	{"progress", `CREATE TABLE IF NOT EXISTS progress (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		course_id VARCHAR(64) NOT NULL,
		unlocked_lectures TEXT NOT NULL,
		completed_lectures TEXT NOT NULL,
		current_lecture_id VARCHAR(64) NOT NULL,
		progress_percentage INTEGER NOT NULL,
		last_accessed_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		version BIGINT NOT NULL,
		UNIQUE (user_id, course_id)
	)`},
}

// Tables names of all managed tables in creation order
func Tables() []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.name
	}
	return names
}

// Migrate create missing tables, existing ones are left untouched
func Migrate(ctx context.Context, conn driver.ITransactionalDB) error {
	logger := logging.ExtractLoggerFromContext(ctx)
	for _, t := range tables {
		if _, err := conn.ExecContext(ctx, t.ddl); err != nil {
			return errors.Wrapf(err, "failed to create table %s", t.name)
		}
		logger.Debug("table ensured", zap.String("db.table", t.name))
	}
	return nil
}
