package user

import (
	"context"

	"github.com/pot-code/lms-progress/internal/domain"
)

// UserModel account with its login bookkeeping
type UserModel struct {
	ID         string      `json:"id"`
	Username   string      `json:"username" validate:"required,min=3,max=32"`
	Email      string      `json:"email" validate:"required,email"`
	Password   string      `json:"password,omitempty" validate:"required,min=6,max=72"`
	Role       domain.Role `json:"role"`
	LoginRetry int         `json:"-"`
	LastLogin  int64       `json:"-"` // unix milli
}

// Credential sign in form, Username may also be an email
type Credential struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var (
	// ErrDuplicatedUser unique key constraint violation
	ErrDuplicatedUser = domain.Conflict("username or email is already registered")
	// ErrNoSuchUser unknown user or wrong password
	ErrNoSuchUser = domain.Unauthenticated("invalid username or password")
	// ErrUserTooManyRetry login locked until the retry timeout passes
	ErrUserTooManyRetry = domain.Forbidden("too many login attempts, try again later")
)

type UserUseCase interface {
	SignUp(ctx context.Context, post *UserModel) (*UserModel, error)
	SignIn(ctx context.Context, cred *Credential) (*UserModel, error)
	Exists(ctx context.Context, username, email string) (bool, error)
}

type UserRepository interface {
	// FindByCredential match by username or email, nil when absent
	FindByCredential(ctx context.Context, username, email string) (*UserModel, error)
	SaveUser(ctx context.Context, post *UserModel) error
	UpdateLogin(ctx context.Context, post *UserModel) error
}
