package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierrors "github.com/mystica-ai/mystica/server/internal/errors"
)

// GetCacheAnalytics reports hit rate, estimated savings, and response-time
// comparison over the trailing window.
//
//	GET /api/v1/cache/analytics?windowHours=24
func (s *APIV1Service) GetCacheAnalytics(c echo.Context) error {
	ctx := c.Request().Context()

	windowHours, err := parsePositiveIntParam(c.QueryParam("windowHours"), 24)
	if err != nil {
		return writeError(c, err)
	}

	hitRate, err := s.Analytics.HitRate(ctx, windowHours)
	if err != nil {
		return writeError(c, apierrors.Wrap(apierrors.ErrCodeStorage, "failed to compute hit rate", err))
	}
	savings, err := s.Analytics.Savings(ctx, windowHours)
	if err != nil {
		return writeError(c, apierrors.Wrap(apierrors.ErrCodeStorage, "failed to compute savings", err))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"windowHours":   windowHours,
		"hitRate":       hitRate,
		"savings":       savings,
		"responseTimes": s.Analytics.ResponseTimes(),
	})
}

// GetTopCombinations reports the most requested live combinations.
//
//	GET /api/v1/cache/top-combinations?limit=10
func (s *APIV1Service) GetTopCombinations(c echo.Context) error {
	limit, err := parsePositiveIntParam(c.QueryParam("limit"), 10)
	if err != nil {
		return writeError(c, err)
	}

	combinations, err := s.Analytics.TopCombinations(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, apierrors.Wrap(apierrors.ErrCodeStorage, "failed to list top combinations", err))
	}
	return c.JSON(http.StatusOK, echo.Map{"combinations": combinations})
}

// GetHistoricalMetrics reports hourly snapshots over the trailing days.
//
//	GET /api/v1/cache/metrics/history?days=7
func (s *APIV1Service) GetHistoricalMetrics(c echo.Context) error {
	days, err := parsePositiveIntParam(c.QueryParam("days"), 7)
	if err != nil {
		return writeError(c, err)
	}

	snapshots, err := s.Analytics.HistoricalMetrics(c.Request().Context(), days)
	if err != nil {
		return writeError(c, apierrors.Wrap(apierrors.ErrCodeStorage, "failed to list historical metrics", err))
	}

	items := make([]echo.Map, 0, len(snapshots))
	for _, snapshot := range snapshots {
		items = append(items, echo.Map{
			"hourBucket":             snapshot.HourBucket,
			"totalRequests":          snapshot.TotalRequests,
			"cacheHits":              snapshot.CacheHits,
			"cacheMisses":            snapshot.CacheMisses,
			"hitRatePercentage":      snapshot.HitRatePercentage,
			"avgCacheResponseTimeMs": snapshot.AvgCacheResponseTimeMs,
			"avgAiResponseTimeMs":    snapshot.AvgAiResponseTimeMs,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"snapshots": items})
}

func parsePositiveIntParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, apierrors.New(apierrors.ErrCodeInvalidArgument, "query parameter must be a positive integer")
	}
	return value, nil
}
