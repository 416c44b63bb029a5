package user

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/uuid"
)

type UserSQL struct {
	Conn          driver.ITransactionalDB
	UUIDGenerator uuid.Generator
}

var _ UserRepository = &UserSQL{}

func NewUserRepository(Conn driver.ITransactionalDB, UUIDGenerator uuid.Generator) *UserSQL {
	return &UserSQL{Conn, UUIDGenerator}
}

// FindByCredential query user with provided credential
func (repo *UserSQL) FindByCredential(ctx context.Context, username, email string) (*UserModel, error) {
	conn := repo.Conn
	row, err := conn.QueryContext(ctx, `SELECT id, username, password, email, role, login_retry, last_login
	FROM users WHERE username=$1 OR email=$2`, username, email)
	if err != nil {
		return nil, errors.Wrap(err, "UserSQL.FindByCredential")
	}
	defer row.Close()

	if row.Next() {
		user := new(UserModel)
		if err := row.Scan(&user.ID, &user.Username, &user.Password, &user.Email, &user.Role, &user.LoginRetry, &user.LastLogin); err != nil {
			return nil, errors.Wrap(err, "UserSQL.FindByCredential")
		}
		return user, nil
	}
	return nil, errors.Wrap(row.Err(), "UserSQL.FindByCredential")
}

func (repo *UserSQL) SaveUser(ctx context.Context, post *UserModel) error {
	conn := repo.Conn
	// generate id
	UUIDGenerator := repo.UUIDGenerator
	if uuid, err := UUIDGenerator.Generate(); err == nil {
		post.ID = uuid
	} else {
		return err
	}

	_, err := conn.ExecContext(ctx, `INSERT INTO users(id, username, password, email, role, login_retry, last_login)
	VALUES($1,$2,$3,$4,$5,$6,$7)`, post.ID, post.Username, post.Password, post.Email, string(post.Role), post.LoginRetry, post.LastLogin)

	if driver.IsDuplicateKey(err) {
		return ErrDuplicatedUser
	}
	return errors.Wrap(err, "UserSQL.SaveUser")
}

func (repo *UserSQL) UpdateLogin(ctx context.Context, post *UserModel) error {
	conn := repo.Conn
	_, err := conn.ExecContext(ctx, `UPDATE users
	SET login_retry=$1,
			last_login=$2
	WHERE id = $3`, post.LoginRetry, post.LastLogin, post.ID)
	return errors.Wrap(err, "UserSQL.UpdateLogin")
}
