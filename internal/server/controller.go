package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ndtrung-ct/signal-reactor/internal/models"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
	"github.com/ndtrung-ct/signal-reactor/internal/scheduler"
)

type Controller interface {
	SubmitJob(c echo.Context) error
	GetJobStatus(c echo.Context) error
	ListRules(c echo.Context) error
	UpsertRule(c echo.Context) error
	ListGroups(c echo.Context) error
	UpsertGroup(c echo.Context) error
	Health(c echo.Context) error
}

type controller struct {
	scheduler scheduler.Scheduler
	ruleRepo  mongodb.ReactionRuleRepository
	groupRepo mongodb.GroupRepository
}

func NewHandler(
	sched scheduler.Scheduler,
	ruleRepo mongodb.ReactionRuleRepository,
	groupRepo mongodb.GroupRepository,
) Controller {
	return &controller{
		scheduler: sched,
		ruleRepo:  ruleRepo,
		groupRepo: groupRepo,
	}
}

func (h *controller) SubmitJob(c echo.Context) error {
	var params models.JobParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	job, err := h.scheduler.Submit(c.Request().Context(), params)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, job)
}

func (h *controller) GetJobStatus(c echo.Context) error {
	job, err := h.scheduler.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, job)
}

func (h *controller) ListRules(c echo.Context) error {
	rules, err := h.ruleRepo.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rules)
}

type upsertRuleRequest struct {
	Emojis  []string            `json:"emojis" validate:"required,min=1"`
	Mode    models.ReactionMode `json:"mode" validate:"required,oneof=random sequential ai"`
	Enabled bool                `json:"enabled"`
}

func (h *controller) UpsertRule(c echo.Context) error {
	var req upsertRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rule := &models.ReactionRule{
		UserID:  c.Param("sender_id"),
		Emojis:  req.Emojis,
		Mode:    req.Mode,
		Enabled: req.Enabled,
	}
	if err := h.ruleRepo.Upsert(c.Request().Context(), rule); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, rule)
}

func (h *controller) ListGroups(c echo.Context) error {
	groups, err := h.groupRepo.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, groups)
}

type upsertGroupRequest struct {
	Name      string `json:"name"`
	Monitored bool   `json:"monitored"`
}

func (h *controller) UpsertGroup(c echo.Context) error {
	var req upsertGroupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	group := &models.Group{
		GroupID:   c.Param("group_id"),
		Name:      req.Name,
		Monitored: req.Monitored,
	}
	if err := h.groupRepo.Upsert(c.Request().Context(), group); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, group)
}

func (h *controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "signal-reactor",
	})
}
