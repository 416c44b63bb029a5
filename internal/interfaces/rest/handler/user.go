package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lms-progress/internal/infrastructure/auth"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/validate"
	"github.com/pot-code/lms-progress/internal/user"
)

// UserHandler user related operations
type UserHandler struct {
	JWTUtil     *auth.JWTUtil
	KVStore     driver.KeyValueDB
	UserUseCase user.UserUseCase
	Validator   validate.Validator
}

// NewUserHandler create an user controller instance
func NewUserHandler(
	JWTUtil *auth.JWTUtil,
	KVStore driver.KeyValueDB,
	UserUseCase user.UserUseCase,
	Validator validate.Validator,
) *UserHandler {
	return &UserHandler{
		JWTUtil:     JWTUtil,
		KVStore:     KVStore,
		UserUseCase: UserUseCase,
		Validator:   Validator,
	}
}

// HandleSignIn issue a session token, returned both as cookie and in the body
func (uh *UserHandler) HandleSignIn(c echo.Context) error {
	ju := uh.JWTUtil
	cred := new(user.Credential)
	if ok, err := bindAndValidate(c, uh.Validator, cred); !ok {
		return err
	}

	u, err := uh.UserUseCase.SignIn(c.Request().Context(), cred)
	if err != nil {
		return err
	}
	tokenStr, err := ju.GenerateTokenStr(u)
	if err != nil {
		return err
	}
	ju.SetClientToken(c, tokenStr)
	return c.JSON(http.StatusOK, echo.Map{"token": tokenStr, "user": u})
}

// HandleSignUp self registration always yields a plain user
func (uh *UserHandler) HandleSignUp(c echo.Context) error {
	post := new(user.UserModel)
	if ok, err := bindAndValidate(c, uh.Validator, post); !ok {
		return err
	}
	post.Role = ""

	u, err := uh.UserUseCase.SignUp(c.Request().Context(), post)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// HandleSignOut blacklist the token for the rest of its lifetime
func (uh *UserHandler) HandleSignOut(c echo.Context) error {
	ju := uh.JWTUtil
	kv := uh.KVStore

	tokenStr, err := ju.ExtractToken(c)
	if err != nil {
		return c.NoContent(http.StatusOK)
	}
	token, err := ju.Validate(tokenStr)
	if err != nil {
		return c.NoContent(http.StatusUnauthorized)
	}
	ju.ClearClientToken(c)
	if err := kv.SetEX(tokenStr, "", token.TimeRemaining()); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// HandleUserExists GET /exists?username=&email=
func (uh *UserHandler) HandleUserExists(c echo.Context) error {
	username := c.QueryParam("username")
	email := c.QueryParam("email")
	if err := uh.Validator.AllEmpty([]string{"username", "email"}, username, email); err != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", []*validate.FieldError{err}))
	}

	existing, err := uh.UserUseCase.Exists(c.Request().Context(), username, email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, existing)
}
