package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/anontalks/internal/ledger"
	"github.com/memohai/anontalks/internal/schedule"
)

type StatsSource interface {
	Stats(ctx context.Context) (ledger.Stats, error)
}

type JobLister interface {
	Entries() []schedule.Entry
}

type StatsResponse struct {
	Conversations ledger.Stats     `json:"conversations"`
	Jobs          []schedule.Entry `json:"jobs"`
}

type StatsHandler struct {
	stats  StatsSource
	jobs   JobLister
	logger *slog.Logger
}

// NewStatsHandler creates the stats handler. jobs may be nil.
func NewStatsHandler(log *slog.Logger, stats StatsSource, jobs JobLister) *StatsHandler {
	return &StatsHandler{stats: stats, jobs: jobs, logger: log.With(slog.String("handler", "stats"))}
}

func (h *StatsHandler) Register(e *echo.Echo) {
	e.GET("/stats", h.Get)
}

// Get godoc
// @Summary Pairing stats
// @Description Count open conversations by state and list scheduled jobs
// @Tags stats
// @Success 200 {object} StatsResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats [get]
func (h *StatsHandler) Get(c echo.Context) error {
	stats, err := h.stats.Stats(c.Request().Context())
	if err != nil {
		h.logger.Error("load stats failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "stats unavailable")
	}
	resp := StatsResponse{Conversations: stats, Jobs: []schedule.Entry{}}
	if h.jobs != nil {
		resp.Jobs = h.jobs.Entries()
	}
	return c.JSON(http.StatusOK, resp)
}
