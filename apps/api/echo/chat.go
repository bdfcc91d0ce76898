package echoapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutoria/tutoria/core/chat"
)

type (
	closeChatData struct {
		EndedAt time.Time `json:"ended_at"`
	}

	summaryData struct {
		Summary string `json:"summary"`
	}

	evaluationData struct {
		OverallScore float64 `json:"overall_score"`
		Comments     string  `json:"comments"`
	}

	automatedData struct {
		BotEvaluation json.RawMessage `json:"bot_evaluation"`
	}
)

func registerChatAPI(router *echo.Group, jwt echo.MiddlewareFunc, a *api) {
	g := router.Group("/chats", jwt)

	g.POST("", a.openChat)
	g.GET("", a.listChats)
	g.GET("/:id", a.chatDetail)
	g.POST("/:id/close", a.closeChat)
	g.PUT("/:id/summary", a.setChatSummary)
	g.POST("/:id/evaluations", a.evaluateChat)
	g.GET("/:id/evaluations", a.listEvaluations)
	g.POST("/:id/automated-evaluations", a.recordAutomated)
	g.GET("/:id/automated-evaluations", a.listAutomated)
	g.GET("/:id/automated-evaluations/latest", a.latestAutomated)

	router.GET("/evaluations/:id", a.evaluationDetail, jwt)
}

// openChat opens a chat for the caller. Only admins may open one on behalf of another student.
func (a *api) openChat(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data chat.NewSession
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if data.StudentID == "" {
		data.StudentID = claims.Subject
	} else if data.StudentID != claims.Subject && !claims.IsAdmin {
		return errHttpForbidden
	}

	sess, err := a.chats.Open(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

// listChats lists chats, most recent first. Teachers see their classrooms' chats
// (?classroom_id=), everyone else only their own. ?overview=true adds evaluations.
func (a *api) listChats(ctx echo.Context) error {
	filter, err := bindChatFilter(ctx)
	if err != nil {
		return err
	}
	overview, err := queryBool(ctx.QueryParams(), "overview")
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

	rctx := ctx.Request().Context()
	if overview {
		overviews, err := a.chats.ListOverviews(rctx, filter)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, overviews)
	}
	sessions, err := a.chats.List(rctx, filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessions)
}

// loadChat fetches a chat the caller owns or teaches.
func (a *api) loadChat(ctx echo.Context, id string) (chat.Session, error) {
	sess, err := a.chats.Get(ctx.Request().Context(), id)
	if err != nil {
		return chat.Session{}, err
	}
	if err = a.checkSelfOrTeacher(ctx, sess.ClassroomID, sess.StudentID); err != nil {
		return chat.Session{}, err
	}
	return sess, nil
}

func (a *api) chatDetail(ctx echo.Context) error {
	sess, err := a.loadChat(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	ov, err := a.chats.GetOverview(ctx.Request().Context(), sess.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (a *api) closeChat(ctx echo.Context) error {
	sess, err := a.loadChat(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data closeChatData
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if sess, err = a.chats.Close(ctx.Request().Context(), sess.ID, data.EndedAt); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (a *api) setChatSummary(ctx echo.Context) error {
	sess, err := a.loadChat(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	var data summaryData
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if sess, err = a.chats.SetSummary(ctx.Request().Context(), sess.ID, data.Summary); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

// evaluateChat records the caller's evaluation; non-teachers of the classroom get a NotAMemberError.
func (a *api) evaluateChat(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data evaluationData
	if err = bind(ctx, &data); err != nil {
		return err
	}
	eval, err := a.chats.Evaluate(ctx.Request().Context(), chat.NewEvaluation{
		ChatID:       ctx.Param("id"),
		EvaluatorID:  claims.Subject,
		OverallScore: data.OverallScore,
		Comments:     data.Comments,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, eval)
}

func (a *api) listEvaluations(ctx echo.Context) error {
	sess, err := a.loadChat(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	evals, err := a.chats.ListEvaluations(ctx.Request().Context(), sess.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, evals)
}

func (a *api) evaluationDetail(ctx echo.Context) error {
	eval, err := a.chats.GetEvaluation(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = a.loadChat(ctx, eval.ChatID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, eval)
}

func (a *api) recordAutomated(ctx echo.Context) error {
	sess, err := a.chats.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = a.checkClassroomAccess(ctx, sess.ClassroomID, true); err != nil {
		return err
	}
	var data automatedData
	if err = bind(ctx, &data); err != nil {
		return err
	}
	auto, err := a.chats.RecordAutomated(ctx.Request().Context(), sess.ID, data.BotEvaluation)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, auto)
}

func (a *api) listAutomated(ctx echo.Context) error {
	sess, err := a.loadChat(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	autos, err := a.chats.ListAutomated(ctx.Request().Context(), sess.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, autos)
}

func (a *api) latestAutomated(ctx echo.Context) error {
	sess, err := a.loadChat(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	auto, err := a.chats.LatestAutomated(ctx.Request().Context(), sess.ID)
	if err != nil {
		return err
	}
	if auto == nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, auto)
}
