package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutoria/tutoria/core/progress"
)

func registerProgressAPI(router *echo.Group, jwt echo.MiddlewareFunc, a *api) {
	g := router.Group("/progress", jwt)

	g.POST("", a.recordScore, teacherMiddleware)
	g.POST("/batch", a.recordScores, teacherMiddleware)
	g.GET("", a.queryProgress)
}

func (a *api) recordScore(ctx echo.Context) error {
	var data progress.NewScore
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := a.checkClassroomAccess(ctx, data.ClassroomID, true); err != nil {
		return err
	}
	score, err := a.progress.Record(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, score)
}

// recordScores records a batch atomically; the caller must teach every classroom involved.
func (a *api) recordScores(ctx echo.Context) error {
	var data []progress.NewScore
	if err := bind(ctx, &data); err != nil {
		return err
	}
	checked := make(map[string]bool)
	for _, ns := range data {
		if checked[ns.ClassroomID] {
			continue
		}
		if err := a.checkClassroomAccess(ctx, ns.ClassroomID, true); err != nil {
			return err
		}
		checked[ns.ClassroomID] = true
	}

	scores, err := a.progress.RecordBatch(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, scores)
}

// queryProgress returns scores oldest first. Students only ever see their own.
func (a *api) queryProgress(ctx echo.Context) error {
	filter, err := bindProgressFilter(ctx)
	if err != nil {
		return err
	}
	scope, err := a.listScope(ctx, filter.ClassroomID)
	if err != nil {
		return err
	}
	if scope != "" {
		filter.StudentID = scope
	}
	scores, err := a.progress.Query(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, scores)
}
