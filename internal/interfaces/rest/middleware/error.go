package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lms-progress/internal/domain"
	"github.com/pot-code/lms-progress/internal/interfaces/rest/handler"
	"go.uber.org/zap"
)

// ErrorHandlingOption options for error handling
type ErrorHandlingOption struct {
	Handler func(c echo.Context, err error)
	Logger  *zap.Logger
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindUnauthenticated: http.StatusUnauthorized,
	domain.KindForbidden:       http.StatusForbidden,
	domain.KindNotFound:        http.StatusNotFound,
	domain.KindConflict:        http.StatusConflict,
	domain.KindBadRequest:      http.StatusBadRequest,
}

// StatusOf HTTP status of a domain error, 500 for anything else
func StatusOf(err error) int {
	if code, ok := kindStatus[domain.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// ErrorHandling turn errors returned or panicked by handlers into REST error responses.
// **DO NOT return error anymore**
func ErrorHandling(options ...*ErrorHandlingOption) echo.MiddlewareFunc {
	custom := &ErrorHandlingOption{
		Logger: zap.NewNop(),
	}
	if len(options) > 0 {
		option := options[0]
		if option.Handler != nil {
			custom.Handler = option.Handler
		}
		if option.Logger != nil {
			custom.Logger = option.Logger
		}
	}
	logger := custom.Logger
	internal := custom.Handler
	if internal == nil {
		internal = func(c echo.Context, err error) {
			traceID := c.Response().Header().Get(echo.HeaderXRequestID)
			c.JSON(http.StatusInternalServerError,
				handler.NewRESTStandardError(http.StatusInternalServerError, err.Error()).SetTraceID(traceID),
			)
			logger.Error(err.Error(),
				zap.String("trace.id", traceID),
				zap.String("url.path", c.Request().RequestURI),
				zap.String("http.request.method", c.Request().Method),
			)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if any := recover(); any != nil {
					err, ok := any.(error)
					if !ok {
						err = fmt.Errorf("%v", any)
					}
					internal(c, err)
				}
			}()

			err := next(c)
			if err == nil {
				return nil
			}
			if v, ok := err.(*echo.HTTPError); ok {
				c.JSON(v.Code, handler.NewRESTStandardError(v.Code, fmt.Sprint(v.Message)).
					SetTraceID(c.Response().Header().Get(echo.HeaderXRequestID)))
				return nil
			}
			code := StatusOf(err)
			if code == http.StatusInternalServerError {
				internal(c, err)
				return nil
			}
			c.JSON(code, handler.NewRESTStandardError(code, err.Error()).
				SetType(domain.KindOf(err).String()).
				SetTraceID(c.Response().Header().Get(echo.HeaderXRequestID)))
			return nil
		}
	}
}
