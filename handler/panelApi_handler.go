package handler

import (
	"context"
	"net/http"
	"strconv"

	"pr_panel/helper/atlassian"
	"pr_panel/helper/panel"
	"pr_panel/log"
	"pr_panel/model"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
)

// BranchCheckout is the local working copy pull requests get checked out into.
type BranchCheckout interface {
	Checkout(ctx context.Context, branch string) error
	CurrentBranch() (string, error)
}

type PanelAPIHandler struct {
	Holder  *UpdateTaskHolder
	Panel   *panel.Model
	Repo    BranchCheckout // nil when no working copy is configured
	Metrics http.Handler   // nil disables /metrics
}

type actionResponse struct {
	Status      string             `json:"status"`
	PullRequest *model.PullRequest `json:"pullRequest,omitempty"`
	Branch      string             `json:"branch,omitempty"`
}

func (h *PanelAPIHandler) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/pull-requests/reviewing", h.ReviewingPRs)
	api.GET("/pull-requests/own", h.OwnPRs)
	api.GET("/notifications", h.Notifications)
	api.GET("/branch", h.CurrentBranch)
	api.POST("/refresh", h.Refresh)

	pr := api.Group("/pull-requests/:project/:repo/:id")
	pr.POST("/approve", h.Approve)
	pr.POST("/decline", h.Decline)
	pr.POST("/merge", h.Merge)
	pr.POST("/checkout", h.Checkout)

	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}
}

func (h *PanelAPIHandler) ReviewingPRs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Panel.ReviewingPRs())
}

func (h *PanelAPIHandler) OwnPRs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Panel.OwnPRs())
}

func (h *PanelAPIHandler) Notifications(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Panel.Notifications())
}

func (h *PanelAPIHandler) Refresh(c echo.Context) error {
	if err := h.Holder.RescheduleOrStart(); err != nil {
		log.Errorf("Refresh failed: %v", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusAccepted, actionResponse{Status: "scheduled"})
}

func (h *PanelAPIHandler) CurrentBranch(c echo.Context) error {
	if h.Repo == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no working copy configured")
	}
	branch, err := h.Repo.CurrentBranch()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, actionResponse{Status: "ok", Branch: branch})
}

func (h *PanelAPIHandler) Approve(c echo.Context) error {
	pr, client, err := h.target(c)
	if err != nil {
		return err
	}
	if err := client.Approve(c.Request().Context(), pr); err != nil {
		return actionError("approve", err)
	}
	return c.JSON(http.StatusOK, actionResponse{Status: "approved"})
}

func (h *PanelAPIHandler) Decline(c echo.Context) error {
	pr, client, err := h.target(c)
	if err != nil {
		return err
	}
	if err := client.Decline(c.Request().Context(), pr); err != nil {
		return actionError("decline", err)
	}
	return c.JSON(http.StatusOK, actionResponse{Status: "declined"})
}

func (h *PanelAPIHandler) Merge(c echo.Context) error {
	pr, client, err := h.target(c)
	if err != nil {
		return err
	}
	if len(pr.MergeStatus) > 0 && !pr.CanMerge() {
		return echo.NewHTTPError(http.StatusConflict, pr.MergeStatus[0].VetoesSummary())
	}
	merged, err := client.Merge(c.Request().Context(), pr)
	if err != nil {
		return actionError("merge", err)
	}
	return c.JSON(http.StatusOK, actionResponse{Status: "merged", PullRequest: &merged})
}

func (h *PanelAPIHandler) Checkout(c echo.Context) error {
	if h.Repo == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no working copy configured")
	}
	pr, err := h.lookup(c)
	if err != nil {
		return err
	}
	branch := pr.FromRef.DisplayID
	if branch == "" {
		branch = pr.FromRef.ID
	}
	if err := h.Repo.Checkout(c.Request().Context(), branch); err != nil {
		log.Errorf("Checkout of PR #%d failed: %v", pr.ID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, actionResponse{Status: "checked out", Branch: branch})
}

func (h *PanelAPIHandler) lookup(c echo.Context) (model.PullRequest, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return model.PullRequest{}, echo.NewHTTPError(http.StatusBadRequest, "invalid pull request id")
	}
	pr, ok := h.Panel.FindPullRequest(c.Param("project"), c.Param("repo"), id)
	if !ok {
		return model.PullRequest{}, echo.NewHTTPError(http.StatusNotFound, "pull request is not in the panel")
	}
	return pr, nil
}

func (h *PanelAPIHandler) target(c echo.Context) (model.PullRequest, atlassian.Bitbucket, error) {
	pr, err := h.lookup(c)
	if err != nil {
		return pr, nil, err
	}
	client := h.Holder.Client()
	if client == nil {
		return pr, nil, echo.NewHTTPError(http.StatusServiceUnavailable, "polling has not been started")
	}
	return pr, client, nil
}

func actionError(action string, err error) error {
	log.Errorf("Failed to %s pull request: %v", action, err)
	var reqErr *atlassian.RequestError
	switch {
	case atlassian.IsUnauthorized(err):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid Bitbucket credentials")
	case atlassian.IsForbidden(err):
		return echo.NewHTTPError(http.StatusForbidden, "action forbidden by Bitbucket")
	case atlassian.IsTransport(err):
		return echo.NewHTTPError(http.StatusBadGateway, "Bitbucket is unreachable")
	case errors.As(err, &reqErr):
		return echo.NewHTTPError(http.StatusBadGateway, reqErr.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
