package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lms-progress/internal/infrastructure/validate"
)

// bindAndValidate bind the request into post and run struct validation,
// the error response is already written when ok is false
func bindAndValidate(c echo.Context, v validate.Validator, post interface{}) (ok bool, err error) {
	if err = c.Bind(post); err != nil {
		detail := err.Error()
		if he, isHTTP := err.(*echo.HTTPError); isHTTP && he.Internal != nil {
			detail = he.Internal.Error()
		}
		return false, c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, detail))
	}
	if errs := v.Struct(post); errs != nil {
		return false, c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", errs))
	}
	return true, nil
}
