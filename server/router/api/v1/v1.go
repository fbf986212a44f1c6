// Package v1 exposes the cache administration API: invalidation, stats,
// analytics, and warming control.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/mystica-ai/mystica/internal/profile"
	"github.com/mystica-ai/mystica/plugin/tarot/analytics"
	"github.com/mystica-ai/mystica/plugin/tarot/cache"
	"github.com/mystica-ai/mystica/plugin/tarot/warmer"
	apierrors "github.com/mystica-ai/mystica/server/internal/errors"
	servermw "github.com/mystica-ai/mystica/server/middleware"
	"github.com/mystica-ai/mystica/store"
)

// APIV1Service wires the cache services into the admin HTTP surface.
type APIV1Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Cache     *cache.Service
	Analytics *analytics.Service
	Warmer    *warmer.Service
}

// NewAPIV1Service creates the admin API service.
func NewAPIV1Service(profile *profile.Profile, st *store.Store, cacheService *cache.Service, analyticsService *analytics.Service, warmerService *warmer.Service) *APIV1Service {
	return &APIV1Service{
		Profile:   profile,
		Store:     st,
		Cache:     cacheService,
		Analytics: analyticsService,
		Warmer:    warmerService,
	}
}

// Register mounts the admin routes on the Echo instance.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	group := echoServer.Group("/api/v1")
	group.Use(middleware.CORS())
	group.Use(servermw.NewRateLimiter(10, 20).Middleware())

	group.DELETE("/cache/tarotistas/:tarotistaId", s.InvalidateTarotista)
	group.DELETE("/cache/tarotistas/:tarotistaId/cards", s.InvalidateTarotistaCards)
	group.DELETE("/cache", s.ClearCache)

	group.GET("/cache/stats", s.GetCacheStats)
	group.GET("/cache/analytics", s.GetCacheAnalytics)
	group.GET("/cache/top-combinations", s.GetTopCombinations)
	group.GET("/cache/metrics/history", s.GetHistoricalMetrics)

	group.POST("/cache/warming", s.StartWarming)
	group.GET("/cache/warming", s.GetWarmingStatus)
	group.DELETE("/cache/warming", s.StopWarming)
}

type errorResponse struct {
	Code    apierrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// writeError maps structured cache errors to HTTP status codes.
func writeError(c echo.Context, err error) error {
	var cacheErr *apierrors.CacheError
	if !errors.As(err, &cacheErr) {
		cacheErr = apierrors.Wrap(apierrors.ErrCodeStorage, "internal error", err)
	}

	status := http.StatusInternalServerError
	switch cacheErr.Code {
	case apierrors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case apierrors.ErrCodeConflict, apierrors.ErrCodeWarmingInProgress:
		status = http.StatusConflict
	case apierrors.ErrCodeServiceUnavailable:
		status = http.StatusServiceUnavailable
	case apierrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		slog.Error("admin API request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, &errorResponse{Code: cacheErr.Code, Message: cacheErr.Message})
}
