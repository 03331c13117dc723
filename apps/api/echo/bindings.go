package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/submission"
)

const pageParam = "page"

// paramID reads a positive integer path parameter; anything else is a 404.
func paramID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func pageNumber(ctx echo.Context) int {
	return core.ParsePageNumber(ctx.QueryParam(pageParam))
}

// submissionQuery holds the admin submission list filters: ?status=&scenario=&search=&page=
type submissionQuery struct {
	submission.AdminListFilter
}

func (q *submissionQuery) Bind(ctx echo.Context) {
	q.Status = core.CleanString(ctx.QueryParam("status"), true /* lower */)
	q.Search = core.CleanString(ctx.QueryParam("search"))
	if id, err := strconv.ParseInt(ctx.QueryParam("scenario"), 10, 64); err == nil && id > 0 {
		q.ScenarioID = id
	}
	q.Page = pageNumber(ctx)
}

type (
	SuccessResponse struct {
		Success bool `json:"success"`
	}

	UpdatedResponse struct {
		Success bool `json:"success"`
		Updated int  `json:"updated"`
	}

	IDsRequest struct {
		IDs []int64 `json:"ids"`
	}
)
