package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thejadex/RE-VLab/core/submission"
)

type submissionApi struct {
	svc *submission.Service
}

func registerSubmissionAPI(
	e *echo.Echo,
	authed, admin echo.MiddlewareFunc,
	svc *submission.Service,
) {
	api := submissionApi{svc: svc}

	sg := e.Group("/submissions", authed)
	sg.GET("/:id", api.detail)
	sg.POST("/:id/add-requirement", api.addRequirement)
	sg.POST("/:id/submit", api.submit)
	sg.GET("/:id/srs", api.retrieveSRS)
	sg.PUT("/:id/srs", api.saveSRS)

	rg := e.Group("/requirements", authed)
	rg.GET("/:id/edit", api.retrieveRequirement)
	rg.POST("/:id/edit", api.editRequirement)
	rg.GET("/:id/delete", api.retrieveRequirement)
	rg.POST("/:id/delete", api.deleteRequirement)

	ag := e.Group("/admin-panel/submissions", authed, admin)
	ag.GET("", api.adminList)
	ag.POST("/:id/feedback", api.feedback)
}

// Handlers

// detail marks the submission's feedback read once an admin has viewed it.
func (api *submissionApi) detail(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	detail, err := api.svc.Detail(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "getting submission detail")
	}
	if p.IsAdmin() {
		if _, err = api.svc.MarkFeedbackRead(ctx.Request().Context(), p, id); err != nil {
			return errors.Wrap(err, "marking feedback read")
		}
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *submissionApi) addRequirement(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data submission.RequirementData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RequirementData")
	}

	req, err := api.svc.AddRequirement(ctx.Request().Context(), p, id, data)
	if err != nil {
		return errors.Wrap(err, "adding requirement")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *submissionApi) retrieveRequirement(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	req, err := api.svc.GetRequirement(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "getting requirement")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *submissionApi) editRequirement(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data submission.RequirementData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RequirementData")
	}

	req, err := api.svc.EditRequirement(ctx.Request().Context(), p, id, data)
	if err != nil {
		return errors.Wrap(err, "editing requirement")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *submissionApi) deleteRequirement(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.svc.DeleteRequirement(ctx.Request().Context(), p, id); err != nil {
		return errors.Wrap(err, "deleting requirement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *submissionApi) submit(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	sub, err := api.svc.Submit(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) retrieveSRS(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	doc, err := api.svc.GetSRS(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "getting srs document")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *submissionApi) saveSRS(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data submission.SRSData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SRSData")
	}

	doc, err := api.svc.SaveSRS(ctx.Request().Context(), p, id, data)
	if err != nil {
		return errors.Wrap(err, "saving srs document")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *submissionApi) adminList(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	query := new(submissionQuery)
	query.Bind(ctx)

	list, err := api.svc.AdminList(ctx.Request().Context(), p, query.AdminListFilter)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *submissionApi) feedback(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data submission.FeedbackData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeedbackData")
	}

	fb, err := api.svc.AttachFeedback(ctx.Request().Context(), p, id, data)
	if err != nil {
		return errors.Wrap(err, "attaching feedback")
	}
	return ctx.JSON(http.StatusCreated, fb)
}
