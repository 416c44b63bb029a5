package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/pot-code/lms-progress/internal/infrastructure/auth"
	"github.com/pot-code/lms-progress/internal/infrastructure/websocket"
	"github.com/pot-code/lms-progress/internal/progress"
)

// ProgressFeedHandler streams the caller's progress events over a websocket
type ProgressFeedHandler struct {
	Hub     *websocket.Hub
	JWTUtil *auth.JWTUtil
}

func NewProgressFeedHandler(Hub *websocket.Hub, JWTUtil *auth.JWTUtil) *ProgressFeedHandler {
	return &ProgressFeedHandler{Hub, JWTUtil}
}

func (fh *ProgressFeedHandler) HandleFeed(c echo.Context) error {
	p := fh.JWTUtil.GetContextPrincipal(c)
	return fh.Hub.ServeTopic(c, progress.Topic(p.UserID))
}
