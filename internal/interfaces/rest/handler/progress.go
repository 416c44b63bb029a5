package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lms-progress/internal/infrastructure/auth"
	"github.com/pot-code/lms-progress/internal/infrastructure/validate"
	"github.com/pot-code/lms-progress/internal/progress"
)

// LectureForm unlock/complete request, courseId is derived from the lecture when omitted
type LectureForm struct {
	CourseID  string `json:"courseId"`
	LectureID string `json:"lectureId" validate:"required"`
}

type ProgressHandler struct {
	ProgressUseCase progress.ProgressUseCase
	JWTUtil         *auth.JWTUtil
	Validator       validate.Validator
}

func NewProgressHandler(
	ProgressUseCase progress.ProgressUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *ProgressHandler {
	return &ProgressHandler{ProgressUseCase, JWTUtil, Validator}
}

// HandleStartCourse POST /course/:courseId
func (ph *ProgressHandler) HandleStartCourse(c echo.Context) error {
	p := ph.JWTUtil.GetContextPrincipal(c)
	cp, err := ph.ProgressUseCase.StartCourse(c.Request().Context(), p, c.Param("courseId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cp)
}

// HandleUnlock POST /unlock and POST /course/:courseId/unlock/:lectureId
func (ph *ProgressHandler) HandleUnlock(c echo.Context) error {
	form, ok, err := ph.lectureForm(c)
	if !ok {
		return err
	}
	p := ph.JWTUtil.GetContextPrincipal(c)
	record, err := ph.ProgressUseCase.UnlockLecture(c.Request().Context(), p, form.CourseID, form.LectureID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

// HandleComplete POST /complete and POST /course/:courseId/complete/:lectureId
func (ph *ProgressHandler) HandleComplete(c echo.Context) error {
	form, ok, err := ph.lectureForm(c)
	if !ok {
		return err
	}
	p := ph.JWTUtil.GetContextPrincipal(c)
	record, err := ph.ProgressUseCase.MarkLectureCompleted(c.Request().Context(), p, form.CourseID, form.LectureID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

// lectureForm path parameters win over the body
func (ph *ProgressHandler) lectureForm(c echo.Context) (*LectureForm, bool, error) {
	form := new(LectureForm)
	if lectureID := c.Param("lectureId"); lectureID != "" {
		form.CourseID = c.Param("courseId")
		form.LectureID = lectureID
		return form, true, nil
	}
	ok, err := bindAndValidate(c, ph.Validator, form)
	return form, ok, err
}

// HandleGetCourseProgress GET /course/:courseId
func (ph *ProgressHandler) HandleGetCourseProgress(c echo.Context) error {
	courseID := c.Param("courseId")
	if courseID == "" {
		courseID = c.QueryParam("courseId")
	}
	if errs := ph.Validator.Empty("courseId", courseID); errs != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", errs))
	}

	p := ph.JWTUtil.GetContextPrincipal(c)
	cp, err := ph.ProgressUseCase.GetCourseProgress(c.Request().Context(), p, courseID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cp)
}

// HandleGetUserProgress GET /user and GET /user/:userId
func (ph *ProgressHandler) HandleGetUserProgress(c echo.Context) error {
	q := new(progress.ListQuery)
	if ok, err := bindAndValidate(c, ph.Validator, q); !ok {
		return err
	}
	if target := c.Param("userId"); target != "" {
		q.UserID = target
	}

	p := ph.JWTUtil.GetContextPrincipal(c)
	result, err := ph.ProgressUseCase.GetUserProgress(c.Request().Context(), p, q.UserID, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleListAllProgress GET /all
func (ph *ProgressHandler) HandleListAllProgress(c echo.Context) error {
	q := new(progress.ListQuery)
	if ok, err := bindAndValidate(c, ph.Validator, q); !ok {
		return err
	}

	p := ph.JWTUtil.GetContextPrincipal(c)
	result, err := ph.ProgressUseCase.ListAllProgress(c.Request().Context(), p, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleGetCourseOverview GET /course/:courseId/overview
func (ph *ProgressHandler) HandleGetCourseOverview(c echo.Context) error {
	p := ph.JWTUtil.GetContextPrincipal(c)
	overview, err := ph.ProgressUseCase.GetCourseOverview(c.Request().Context(), p, c.Param("courseId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, overview)
}

// HandleGetStats GET /stats and GET /stats/:userId
func (ph *ProgressHandler) HandleGetStats(c echo.Context) error {
	target := c.Param("userId")
	if target == "" {
		target = c.QueryParam("userId")
	}

	p := ph.JWTUtil.GetContextPrincipal(c)
	stats, err := ph.ProgressUseCase.GetProgressStats(c.Request().Context(), p, target)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// HandleDelete DELETE /:id
func (ph *ProgressHandler) HandleDelete(c echo.Context) error {
	p := ph.JWTUtil.GetContextPrincipal(c)
	if err := ph.ProgressUseCase.DeleteProgress(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}
