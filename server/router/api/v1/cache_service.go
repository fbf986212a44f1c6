package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apierrors "github.com/mystica-ai/mystica/server/internal/errors"
)

type invalidationResponse struct {
	Invalidated int64 `json:"invalidated"`
}

// InvalidateTarotista drops every cached interpretation for the tarotista.
//
//	DELETE /api/v1/cache/tarotistas/:tarotistaId
func (s *APIV1Service) InvalidateTarotista(c echo.Context) error {
	tarotistaID, err := parseTarotistaID(c)
	if err != nil {
		return writeError(c, err)
	}

	deleted, err := s.Cache.InvalidateByTarotista(c.Request().Context(), tarotistaID)
	if err != nil {
		return writeError(c, apierrors.Wrap(apierrors.ErrCodeStorage, "failed to invalidate cache", err))
	}
	return c.JSON(http.StatusOK, &invalidationResponse{Invalidated: deleted})
}

// InvalidateTarotistaCards drops the tarotista's cached interpretations whose
// combination contains any of the given cards.
//
//	DELETE /api/v1/cache/tarotistas/:tarotistaId/cards?cardIds=1,2,3
func (s *APIV1Service) InvalidateTarotistaCards(c echo.Context) error {
	tarotistaID, err := parseTarotistaID(c)
	if err != nil {
		return writeError(c, err)
	}

	cardIDs, err := parseCardIDs(c.QueryParam("cardIds"))
	if err != nil {
		return writeError(c, err)
	}

	deleted, err := s.Cache.InvalidateSelective(c.Request().Context(), tarotistaID, cardIDs)
	if err != nil {
		return writeError(c, apierrors.Wrap(apierrors.ErrCodeStorage, "failed to invalidate cache", err))
	}
	return c.JSON(http.StatusOK, &invalidationResponse{Invalidated: deleted})
}

// ClearCache drops the entire cache, fast tier included.
//
//	DELETE /api/v1/cache
func (s *APIV1Service) ClearCache(c echo.Context) error {
	if err := s.Cache.ClearAll(c.Request().Context()); err != nil {
		return writeError(c, apierrors.Wrap(apierrors.ErrCodeStorage, "failed to clear cache", err))
	}
	return c.NoContent(http.StatusNoContent)
}

// GetCacheStats reports record counts and invalidation counters.
//
//	GET /api/v1/cache/stats
func (s *APIV1Service) GetCacheStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := s.Cache.Stats(ctx)
	if err != nil {
		return writeError(c, apierrors.Wrap(apierrors.ErrCodeStorage, "failed to aggregate cache stats", err))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"totalRecords":   stats.Total,
		"expiredRecords": stats.Expired,
		"avgHitCount":    stats.AvgHits,
		"invalidations":  s.Cache.InvalidationMetrics(),
	})
}

func parseTarotistaID(c echo.Context) (int32, error) {
	raw := c.Param("tarotistaId")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, apierrors.New(apierrors.ErrCodeInvalidArgument, "tarotistaId must be a positive integer")
	}
	return int32(id), nil
}

func parseCardIDs(raw string) ([]int32, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apierrors.New(apierrors.ErrCodeInvalidArgument, "cardIds is required")
	}

	parts := strings.Split(raw, ",")
	cardIDs := make([]int32, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
		if err != nil || id <= 0 {
			return nil, apierrors.New(apierrors.ErrCodeInvalidArgument, "cardIds must be positive integers")
		}
		cardIDs = append(cardIDs, int32(id))
	}
	return cardIDs, nil
}
