package rest

import (
	"expvar"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/lms-progress/internal/domain"
	"github.com/pot-code/lms-progress/internal/enrollment"
	infra "github.com/pot-code/lms-progress/internal/infrastructure"
	"github.com/pot-code/lms-progress/internal/infrastructure/auth"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/validate"
	"github.com/pot-code/lms-progress/internal/infrastructure/websocket"
	"github.com/pot-code/lms-progress/internal/interfaces/rest/handler"
	"github.com/pot-code/lms-progress/internal/interfaces/rest/middleware"
	"github.com/pot-code/lms-progress/internal/progress"
	"github.com/pot-code/lms-progress/internal/user"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

// Serve create http transport server
func Serve(
	conn driver.ITransactionalDB,
	kv driver.KeyValueDB,
	hub *websocket.Hub,
	option *infra.AppConfig,
	UserUseCase user.UserUseCase,
	EnrollmentUseCase enrollment.EnrollmentUseCase,
	ProgressUseCase progress.ProgressUseCase,
	logger *zap.Logger,
) {
	app := NewApp(conn, kv, hub, option, UserUseCase, EnrollmentUseCase, ProgressUseCase, logger)
	printRoutes(app, logger)
	if err := app.Start(fmt.Sprintf("%s:%d", option.Host, option.Port)); err != nil {
		log.Fatal(err)
	}
}

// NewApp build the echo instance with every route registered
func NewApp(
	conn driver.ITransactionalDB,
	kv driver.KeyValueDB,
	hub *websocket.Hub,
	option *infra.AppConfig,
	UserUseCase user.UserUseCase,
	EnrollmentUseCase enrollment.EnrollmentUseCase,
	ProgressUseCase progress.ProgressUseCase,
	logger *zap.Logger,
) *echo.Echo {
	var (
		app       = echo.New()
		validator = validate.NewValidator()
		jwtUtil   = auth.NewJWTUtil(option.Security.JWTMethod,
			option.Security.JWTSecret,
			option.Security.TokenName,
			option.SessionTimeout)
		jwtMiddleware = middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{
			InBlackList: func(token string) (bool, error) {
				return kv.Exists(token)
			},
		})
		refreshMiddleware = middleware.RefreshToken(jwtUtil, &middleware.RefreshTokenOption{
			Threshold: option.SessionRefresh,
		})
		adminOnly = middleware.RequireRole(jwtUtil, domain.RoleAdmin, domain.RoleSuperAdmin)
	)
	app.HideBanner = true

	registerLivenessProbe(app, conn, kv)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)

		app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
			Skipper: func(e echo.Context) bool {
				return strings.HasPrefix(e.Request().RequestURI, "/healthz")
			},
		}))
	}
	app.Use(middleware.ErrorHandling(&middleware.ErrorHandlingOption{Logger: logger}))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Timeout: option.RequestTimeout,
	}))

	var (
		UserHandler       = handler.NewUserHandler(jwtUtil, kv, UserUseCase, validator)
		EnrollmentHandler = handler.NewEnrollmentHandler(EnrollmentUseCase, jwtUtil, validator)
		ProgressHandler   = handler.NewProgressHandler(ProgressUseCase, jwtUtil, validator)
		FeedHandler       = handler.NewProgressFeedHandler(hub, jwtUtil)
		authenticated     = []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware}
	)

	createEndpoint(app,
		&endpoint{
			apiVersion: "api/v1",
			middlewares: []echo.MiddlewareFunc{
				echo_middleware.RequestIDWithConfig(echo_middleware.RequestIDConfig{Generator: uuid.NewString}),
				middleware.SetTraceLogger(logger),
			},
			groups: []*apiGroup{
				{
					prefix: "/user",
					routes: []*route{
						{"POST", "/login", UserHandler.HandleSignIn, nil},
						{"PUT", "/sign-out", UserHandler.HandleSignOut, nil},
						{"POST", "/sign-up", UserHandler.HandleSignUp, nil},
						{"GET", "/exists", UserHandler.HandleUserExists, nil},
					},
				},
				{
					prefix:      "/enrollment",
					middlewares: authenticated,
					routes: []*route{
						{"POST", "", EnrollmentHandler.HandleRequest, nil},
						{"GET", "", EnrollmentHandler.HandleListAll, []echo.MiddlewareFunc{adminOnly}},
						{"GET", "/my-requests", EnrollmentHandler.HandleListMine, nil},
						{"GET", "/course/:courseId", EnrollmentHandler.HandleGetStatus, nil},
						{"GET", "/:id", EnrollmentHandler.HandleGet, nil},
						{"DELETE", "/:id", EnrollmentHandler.HandleDelete, nil},
						{"PATCH", "/:id", EnrollmentHandler.HandleReview, []echo.MiddlewareFunc{adminOnly}},
						{"PUT", "/:id/review", EnrollmentHandler.HandleReview, []echo.MiddlewareFunc{adminOnly}},
					},
				},
				{
					prefix:      "/progress",
					middlewares: authenticated,
					routes: []*route{
						{"POST", "/unlock", ProgressHandler.HandleUnlock, nil},
						{"POST", "/complete", ProgressHandler.HandleComplete, nil},
						{"POST", "/course/:courseId", ProgressHandler.HandleStartCourse, nil},
						{"POST", "/course/:courseId/unlock/:lectureId", ProgressHandler.HandleUnlock, nil},
						{"POST", "/course/:courseId/complete/:lectureId", ProgressHandler.HandleComplete, nil},
						{"GET", "", ProgressHandler.HandleGetCourseProgress, nil},
						{"GET", "/course/:courseId", ProgressHandler.HandleGetCourseProgress, nil},
						{"GET", "/course/:courseId/overview", ProgressHandler.HandleGetCourseOverview, []echo.MiddlewareFunc{adminOnly}},
						{"GET", "/user", ProgressHandler.HandleGetUserProgress, nil},
						{"GET", "/user/:userId", ProgressHandler.HandleGetUserProgress, nil},
						{"GET", "/stats", ProgressHandler.HandleGetStats, nil},
						{"GET", "/stats/:userId", ProgressHandler.HandleGetStats, nil},
						{"GET", "/all", ProgressHandler.HandleListAllProgress, []echo.MiddlewareFunc{adminOnly}},
						{"DELETE", "/:id", ProgressHandler.HandleDelete, nil},
					},
				},
				{
					prefix:      "/ws",
					middlewares: authenticated,
					routes: []*route{
						{"GET", "/progress", FeedHandler.HandleFeed, nil},
					},
				},
			},
		})
	return app
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Info("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, db driver.ITransactionalDB, kv driver.KeyValueDB) {
	app.GET("/healthz", func(c echo.Context) error {
		if db.Ping() == nil && kv.Ping() == nil {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusServiceUnavailable)
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
