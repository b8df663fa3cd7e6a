package handlers

import (
	"log/slog"

	"github.com/GregMSThompson/insight-portal/internal/middleware"
	"github.com/GregMSThompson/insight-portal/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler
	Middleware      *middleware.Middleware
	LoginLimiter    *middleware.RateLimiter

	AuthSvc      authService
	UserSvc      userService
	DashboardSvc dashboardService
	EmbedSvc     embedService
	TokenSvc     tokenService
	UploadSvc    uploadService
	HealthSvc    healthService
}
