package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core/notification"
)

type notificationApi struct {
	svc *notification.Service
}

func registerNotificationAPI(e *echo.Echo, authed echo.MiddlewareFunc, svc *notification.Service) {
	api := notificationApi{svc: svc}

	ng := e.Group("/notifications", authed)
	ng.GET("", api.list)
	ng.POST("/mark-read", api.markRead)
	ng.POST("/mark-all-read", api.markAllRead)
}

// Handlers

// list returns one page of notifications and then marks exactly those as read.
func (api *notificationApi) list(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	list, err := api.svc.List(ctx.Request().Context(), p.ID(), pageNumber(ctx))
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	if _, err = api.svc.MarkRead(ctx.Request().Context(), p.ID(), list.IDs()); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data IDsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), p.ID(), data.IDs)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, UpdatedResponse{Success: true, Updated: n})
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), p.ID())
	if err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	return ctx.JSON(http.StatusOK, UpdatedResponse{Success: true, Updated: n})
}
