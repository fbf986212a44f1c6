package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/mystica-ai/mystica/server/internal/errors"
)

// StartWarming launches a background warming run over the most popular
// combinations. Responds 409 when a run is already active.
//
//	POST /api/v1/cache/warming?topN=100
func (s *APIV1Service) StartWarming(c echo.Context) error {
	if s.Warmer == nil {
		return writeError(c, apierrors.New(apierrors.ErrCodeServiceUnavailable, "warming requires an AI provider"))
	}

	topN, err := parsePositiveIntParam(c.QueryParam("topN"), 100)
	if err != nil {
		return writeError(c, err)
	}

	result, err := s.Warmer.Start(c.Request().Context(), topN)
	if err != nil {
		return writeError(c, apierrors.Wrap(apierrors.ErrCodeStorage, "failed to start cache warming", err))
	}
	if !result.Started {
		// Not started either because a run is active (conflict) or because
		// there is nothing to warm (fine).
		status := http.StatusOK
		if s.Warmer.Status().IsRunning {
			status = http.StatusConflict
		}
		return c.JSON(status, result)
	}
	return c.JSON(http.StatusAccepted, result)
}

// GetWarmingStatus reports progress of the current or last warming run.
//
//	GET /api/v1/cache/warming
func (s *APIV1Service) GetWarmingStatus(c echo.Context) error {
	if s.Warmer == nil {
		return writeError(c, apierrors.New(apierrors.ErrCodeServiceUnavailable, "warming requires an AI provider"))
	}
	return c.JSON(http.StatusOK, s.Warmer.Status())
}

// StopWarming requests cooperative cancellation of the active run.
//
//	DELETE /api/v1/cache/warming
func (s *APIV1Service) StopWarming(c echo.Context) error {
	if s.Warmer == nil {
		return writeError(c, apierrors.New(apierrors.ErrCodeServiceUnavailable, "warming requires an AI provider"))
	}
	s.Warmer.Stop()
	return c.JSON(http.StatusOK, s.Warmer.Status())
}
