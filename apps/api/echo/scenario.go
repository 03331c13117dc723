package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
)

const adminScenariosPath = "/admin-panel/scenarios/"

type scenarioApi struct {
	svc    *scenario.Service
	subSvc *submission.Service
}

func registerScenarioAPI(
	e *echo.Echo,
	authed, admin echo.MiddlewareFunc,
	svc *scenario.Service,
	subSvc *submission.Service,
) {
	api := scenarioApi{svc: svc, subSvc: subSvc}

	sg := e.Group("/scenarios", authed)
	sg.GET("", api.list)
	sg.GET("/:pk", api.workspace)

	ag := e.Group("/admin-panel/scenarios", authed, admin)
	ag.GET("", api.adminList)
	ag.POST("/create", api.create)
	ag.GET("/:pk/edit", api.retrieve)
	ag.POST("/:pk/edit", api.update)
	ag.POST("/:pk/delete", api.destroy)
}

// Handlers

func (api *scenarioApi) list(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	if p.IsAdmin() {
		return ctx.Redirect(http.StatusSeeOther, adminScenariosPath)
	}

	scenarios, err := api.svc.ListActive(ctx.Request().Context(), p.ID())
	if err != nil {
		return errors.Wrap(err, "listing active scenarios")
	}
	if scenarios == nil {
		scenarios = []scenario.Listed{}
	}
	return ctx.JSON(http.StatusOK, scenarios)
}

// workspace returns the student's submission for the scenario, creating it on first visit.
func (api *scenarioApi) workspace(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "pk")
	if err != nil {
		return err
	}

	ws, err := api.subSvc.Workspace(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "loading workspace")
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *scenarioApi) adminList(ctx echo.Context) error {
	scenarios, err := api.svc.ListAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing scenarios")
	}
	if scenarios == nil {
		scenarios = []scenario.Scenario{}
	}
	return ctx.JSON(http.StatusOK, scenarios)
}

func (api *scenarioApi) create(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data scenario.Data
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to scenario.Data")
	}

	sc, err := api.svc.Create(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating scenario")
	}
	return ctx.JSON(http.StatusCreated, sc)
}

func (api *scenarioApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "pk")
	if err != nil {
		return err
	}
	sc, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting scenario")
	}
	return ctx.JSON(http.StatusOK, sc)
}

func (api *scenarioApi) update(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "pk")
	if err != nil {
		return err
	}
	var data scenario.Data
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to scenario.Data")
	}

	sc, err := api.svc.Update(ctx.Request().Context(), p, id, data)
	if err != nil {
		return errors.Wrap(err, "updating scenario")
	}
	return ctx.JSON(http.StatusOK, sc)
}

func (api *scenarioApi) destroy(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "pk")
	if err != nil {
		return err
	}
	if _, err = api.svc.Delete(ctx.Request().Context(), p, id); err != nil {
		return errors.Wrap(err, "deleting scenario")
	}
	return ctx.NoContent(http.StatusNoContent)
}
