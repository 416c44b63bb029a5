package user

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/pot-code/lms-progress/internal/domain"
	"github.com/pot-code/lms-progress/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserUseCaseImpl ...
type UserUseCaseImpl struct {
	UserRepository UserRepository
	MaximumRetry   int
	RetryTimeout   time.Duration
	now            func() time.Time
}

var _ UserUseCase = &UserUseCaseImpl{}

// NewUserUseCase ...
func NewUserUseCase(
	UserRepository UserRepository,
	MaximumRetry int,
	RetryTimeout time.Duration,
) *UserUseCaseImpl {
	return &UserUseCaseImpl{
		UserRepository: UserRepository,
		MaximumRetry:   MaximumRetry,
		RetryTimeout:   RetryTimeout,
		now:            time.Now,
	}
}

// SignUp create a user
func (uu *UserUseCaseImpl) SignUp(ctx context.Context, post *UserModel) (*UserModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.SignUp", "service")
	defer apmSpan.End()

	ur := uu.UserRepository
	// search for existence
	if m, err := ur.FindByCredential(ctx, post.Username, post.Email); err != nil {
		return nil, err
	} else if m != nil {
		return nil, ErrDuplicatedUser
	}

	password, err := bcrypt.GenerateFromPassword([]byte(post.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}
	post.Password = string(password)
	if !post.Role.Valid() {
		post.Role = domain.RoleUser
	}

	// save user
	if err := ur.SaveUser(ctx, post); err != nil {
		return nil, err
	}
	logging.ExtractLoggerFromContext(ctx).Info("user registered", zap.String("user.id", post.ID))
	post.Password = ""
	return post, nil
}

// SignIn verify credential, the retry counter is reset on success
func (uu *UserUseCaseImpl) SignIn(ctx context.Context, cred *Credential) (*UserModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.SignIn", "service")
	defer apmSpan.End()

	ur := uu.UserRepository
	user, err := ur.FindByCredential(ctx, cred.Username, cred.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSuchUser
	}

	now := uu.now()
	if uu.MaximumRetry > 0 && user.LoginRetry >= uu.MaximumRetry {
		if now.Sub(time.Unix(0, user.LastLogin*int64(time.Millisecond))) < uu.RetryTimeout {
			return nil, ErrUserTooManyRetry
		}
		user.LoginRetry = 0
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(cred.Password)); err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			user.LoginRetry++
			user.LastLogin = now.UnixNano() / int64(time.Millisecond)
			if err := ur.UpdateLogin(ctx, user); err != nil {
				return nil, err
			}
			return nil, ErrNoSuchUser
		}
		return nil, errors.Wrap(err, "failed to process user credential")
	}

	// reset retry number
	user.LoginRetry = 0
	user.LastLogin = now.UnixNano() / int64(time.Millisecond)
	if err := ur.UpdateLogin(ctx, user); err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

// Exists find if user exists in database
func (uu *UserUseCaseImpl) Exists(ctx context.Context, username, email string) (bool, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.Exists", "service")
	defer apmSpan.End()

	user, err := uu.UserRepository.FindByCredential(ctx, username, email)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}
