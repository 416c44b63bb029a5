package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lms-progress/internal/enrollment"
	"github.com/pot-code/lms-progress/internal/infrastructure/auth"
	"github.com/pot-code/lms-progress/internal/infrastructure/validate"
)

type EnrollmentHandler struct {
	EnrollmentUseCase enrollment.EnrollmentUseCase
	JWTUtil           *auth.JWTUtil
	Validator         validate.Validator
}

func NewEnrollmentHandler(
	EnrollmentUseCase enrollment.EnrollmentUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *EnrollmentHandler {
	return &EnrollmentHandler{EnrollmentUseCase, JWTUtil, Validator}
}

// HandleRequest POST /
func (eh *EnrollmentHandler) HandleRequest(c echo.Context) error {
	req := new(enrollment.Request)
	if ok, err := bindAndValidate(c, eh.Validator, req); !ok {
		return err
	}

	p := eh.JWTUtil.GetContextPrincipal(c)
	e, err := eh.EnrollmentUseCase.RequestEnrollment(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

// HandleGetStatus GET /course/:courseId
func (eh *EnrollmentHandler) HandleGetStatus(c echo.Context) error {
	p := eh.JWTUtil.GetContextPrincipal(c)
	status, err := eh.EnrollmentUseCase.GetEnrollmentStatus(c.Request().Context(), p, c.Param("courseId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// HandleGet GET /:id
func (eh *EnrollmentHandler) HandleGet(c echo.Context) error {
	p := eh.JWTUtil.GetContextPrincipal(c)
	e, err := eh.EnrollmentUseCase.GetEnrollment(c.Request().Context(), p, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// HandleListMine GET /my-requests
func (eh *EnrollmentHandler) HandleListMine(c echo.Context) error {
	q := new(enrollment.ListQuery)
	if ok, err := bindAndValidate(c, eh.Validator, q); !ok {
		return err
	}

	p := eh.JWTUtil.GetContextPrincipal(c)
	result, err := eh.EnrollmentUseCase.ListMyRequests(c.Request().Context(), p, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleListAll GET /
func (eh *EnrollmentHandler) HandleListAll(c echo.Context) error {
	q := new(enrollment.ListQuery)
	if ok, err := bindAndValidate(c, eh.Validator, q); !ok {
		return err
	}

	p := eh.JWTUtil.GetContextPrincipal(c)
	result, err := eh.EnrollmentUseCase.ListAllRequests(c.Request().Context(), p, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleDelete DELETE /:id
func (eh *EnrollmentHandler) HandleDelete(c echo.Context) error {
	p := eh.JWTUtil.GetContextPrincipal(c)
	if err := eh.EnrollmentUseCase.DeleteEnrollment(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// HandleReview PATCH /:id and PUT /:id/review
func (eh *EnrollmentHandler) HandleReview(c echo.Context) error {
	review := new(enrollment.Review)
	if ok, err := bindAndValidate(c, eh.Validator, review); !ok {
		return err
	}

	p := eh.JWTUtil.GetContextPrincipal(c)
	e, err := eh.EnrollmentUseCase.ReviewEnrollment(c.Request().Context(), p, c.Param("id"), review)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}
