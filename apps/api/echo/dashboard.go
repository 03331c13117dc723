package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core/dashboard"
	"github.com/thejadex/RE-VLab/core/notification"
	"github.com/thejadex/RE-VLab/core/submission"
)

type dashboardApi struct {
	svc      *dashboard.Service
	subSvc   *submission.Service
	notifSvc *notification.Service
}

func registerDashboardAPI(
	e *echo.Echo,
	authed, admin echo.MiddlewareFunc,
	svc *dashboard.Service,
	subSvc *submission.Service,
	notifSvc *notification.Service,
) {
	api := dashboardApi{
		svc:      svc,
		subSvc:   subSvc,
		notifSvc: notifSvc,
	}

	e.GET("/dashboard", api.dashboard, authed)
	e.GET("/api/sidebar", api.sidebar, authed)
	e.GET("/admin-panel", api.adminDashboard, authed, admin)
}

// Handlers

// dashboard serves the admin statistics to admins and the progress overview to students.
func (api *dashboardApi) dashboard(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	if p.IsAdmin() {
		return api.adminDashboard(ctx)
	}

	dash, err := api.svc.Student(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "computing student dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) adminDashboard(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	dash, err := api.svc.Admin(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "computing admin dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) sidebar(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}

	resp := SidebarResponse{Theme: sess.Theme}
	if resp.UnreadNotifications, err = api.notifSvc.UnreadCount(ctx.Request().Context(), p.ID()); err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	if p.IsStudent() {
		counts, err := api.subSvc.CountByStatus(ctx.Request().Context(), p.ID())
		if err != nil {
			return errors.Wrap(err, "counting submissions")
		}
		resp.Submissions = &counts
	}
	return ctx.JSON(http.StatusOK, resp)
}

type SidebarResponse struct {
	Theme               string                   `json:"theme"`
	UnreadNotifications int                      `json:"unread_notifications"`
	Submissions         *submission.StatusCounts `json:"submissions,omitempty"`
}
