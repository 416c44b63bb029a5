package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lms-progress/internal/domain"
	"github.com/pot-code/lms-progress/internal/infrastructure/auth"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/validate"
	"github.com/pot-code/lms-progress/internal/progress"
	"github.com/pot-code/lms-progress/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProgressUseCase struct {
	mock.Mock
	progress.ProgressUseCase
}

func (m *mockProgressUseCase) UnlockLecture(ctx context.Context, p domain.Principal, courseID, lectureID string) (*progress.ProgressRecord, error) {
	args := m.Called(p, courseID, lectureID)
	r, _ := args.Get(0).(*progress.ProgressRecord)
	return r, args.Error(1)
}

func (m *mockProgressUseCase) GetUserProgress(ctx context.Context, p domain.Principal, targetUserID string, q *progress.ListQuery) (*progress.ListResult, error) {
	args := m.Called(p, targetUserID, *q)
	r, _ := args.Get(0).(*progress.ListResult)
	return r, args.Error(1)
}

func (m *mockProgressUseCase) DeleteProgress(ctx context.Context, p domain.Principal, recordID string) error {
	return m.Called(p, recordID).Error(0)
}

type mockUserUseCase struct {
	mock.Mock
	user.UserUseCase
}

func (m *mockUserUseCase) SignUp(ctx context.Context, post *user.UserModel) (*user.UserModel, error) {
	args := m.Called(*post)
	u, _ := args.Get(0).(*user.UserModel)
	return u, args.Error(1)
}

func (m *mockUserUseCase) SignIn(ctx context.Context, cred *user.Credential) (*user.UserModel, error) {
	args := m.Called(*cred)
	u, _ := args.Get(0).(*user.UserModel)
	return u, args.Error(1)
}

var alice = &auth.AppTokenClaims{UID: "alice", Role: domain.RoleUser}

func newJWTUtil() *auth.JWTUtil {
	return auth.NewJWTUtil("HS256", "secret", "token", time.Minute)
}

// newContext request context with claims already verified
func newContext(ju *auth.JWTUtil, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	ju.SetContextToken(c, alice)
	return c, rec
}

func TestHandleUnlock(t *testing.T) {
	ju := newJWTUtil()
	uc := new(mockProgressUseCase)
	h := NewProgressHandler(uc, ju, validate.NewValidator())
	principal := domain.Principal{UserID: "alice", Role: domain.RoleUser}

	uc.On("UnlockLecture", principal, "", "L1").Return(&progress.ProgressRecord{ID: "p1", UnlockedLectures: []string{"L1"}}, nil)
	c, rec := newContext(ju, http.MethodPost, "/api/v1/progress/unlock", `{"lectureId":"L1"}`)
	require.NoError(t, h.HandleUnlock(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	var got progress.ProgressRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"L1"}, got.UnlockedLectures)

	// path parameters skip the body
	uc.On("UnlockLecture", principal, "c1", "L2").Return(nil, domain.Forbidden("previous lecture must be unlocked first"))
	c, _ = newContext(ju, http.MethodPost, "/", "")
	c.SetParamNames("courseId", "lectureId")
	c.SetParamValues("c1", "L2")
	err := h.HandleUnlock(c)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	uc.AssertExpectations(t)
}

func TestHandleUnlockValidation(t *testing.T) {
	ju := newJWTUtil()
	uc := new(mockProgressUseCase)
	h := NewProgressHandler(uc, ju, validate.NewValidator())

	c, rec := newContext(ju, http.MethodPost, "/api/v1/progress/unlock", `{"courseId":"c1"}`)
	require.NoError(t, h.HandleUnlock(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body RESTValidationError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.InvalidParams, 1)
	assert.Equal(t, "lectureId", body.InvalidParams[0].Domain)

	c, rec = newContext(ju, http.MethodPost, "/api/v1/progress/unlock", `{"lectureId":`)
	require.NoError(t, h.HandleUnlock(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	uc.AssertNotCalled(t, "UnlockLecture", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleGetUserProgress(t *testing.T) {
	ju := newJWTUtil()
	uc := new(mockProgressUseCase)
	h := NewProgressHandler(uc, ju, validate.NewValidator())
	principal := domain.Principal{UserID: "alice", Role: domain.RoleUser}

	q := progress.ListQuery{UserID: "bob", CourseID: "c1", Sort: "-progressPercentage", Page: 2, Limit: 5}
	uc.On("GetUserProgress", principal, "bob", q).Return(&progress.ListResult{Meta: domain.PageMeta{Page: 2, Limit: 5}}, nil)
	c, rec := newContext(ju, http.MethodGet, "/?courseId=c1&sort=-progressPercentage&page=2&limit=5", "")
	c.SetParamNames("userId")
	c.SetParamValues("bob")
	require.NoError(t, h.HandleGetUserProgress(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(ju, http.MethodGet, "/?limit=1000", "")
	require.NoError(t, h.HandleGetUserProgress(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	uc.AssertExpectations(t)
}

func TestHandleDelete(t *testing.T) {
	ju := newJWTUtil()
	uc := new(mockProgressUseCase)
	h := NewProgressHandler(uc, ju, validate.NewValidator())

	uc.On("DeleteProgress", domain.Principal{UserID: "alice", Role: domain.RoleUser}, "p1").Return(nil)
	c, rec := newContext(ju, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("p1")
	require.NoError(t, h.HandleDelete(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandleSignUpForcesUserRole(t *testing.T) {
	ju := newJWTUtil()
	uc := new(mockUserUseCase)
	h := NewUserHandler(ju, driver.NewMemoryKV(), uc, validate.NewValidator())

	uc.On("SignUp", user.UserModel{Username: "mallory", Email: "m@example.com", Password: "secret1"}).
		Return(&user.UserModel{ID: "u1", Username: "mallory", Role: domain.RoleUser}, nil)
	c, rec := newContext(ju, http.MethodPost, "/",
		`{"username":"mallory","email":"m@example.com","password":"secret1","role":"superAdmin"}`)
	require.NoError(t, h.HandleSignUp(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	uc.AssertExpectations(t)
}

func TestHandleSignInAndOut(t *testing.T) {
	ju := newJWTUtil()
	kv := driver.NewMemoryKV()
	uc := new(mockUserUseCase)
	h := NewUserHandler(ju, kv, uc, validate.NewValidator())

	uc.On("SignIn", user.Credential{Username: "alice", Password: "secret1"}).
		Return(&user.UserModel{ID: "alice", Username: "alice", Role: domain.RoleUser}, nil)
	c, rec := newContext(ju, http.MethodPost, "/", `{"username":"alice","password":"secret1"}`)
	require.NoError(t, h.HandleSignIn(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	c, rec = newContext(ju, http.MethodPut, "/", "")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+body.Token)
	require.NoError(t, h.HandleSignOut(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	revoked, err := kv.Exists(body.Token)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestHandleUserExistsValidation(t *testing.T) {
	ju := newJWTUtil()
	h := NewUserHandler(ju, driver.NewMemoryKV(), new(mockUserUseCase), validate.NewValidator())

	c, rec := newContext(ju, http.MethodGet, "/", "")
	require.NoError(t, h.HandleUserExists(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
