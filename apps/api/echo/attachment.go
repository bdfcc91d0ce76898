package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutoria/tutoria/core/attachment"
)

type attachmentData struct {
	StoragePath string          `json:"storage_path"`
	Metadata    json.RawMessage `json:"metadata"`
}

func registerAttachmentAPI(router *echo.Group, jwt echo.MiddlewareFunc, a *api) {
	router.POST("/chats/:id/attachments", a.attachHandler(attachment.ScopeChat), jwt)
	router.GET("/chats/:id/attachments", a.listAttachmentsHandler(attachment.ScopeChat), jwt)
	router.POST("/evaluations/:id/attachments", a.attachHandler(attachment.ScopeEvaluation), jwt)
	router.GET("/evaluations/:id/attachments", a.listAttachmentsHandler(attachment.ScopeEvaluation), jwt)
	router.GET("/attachments/:id", a.attachmentDetail, jwt)
}

// checkTargetAccess makes sure the target exists and the caller owns or teaches the chat behind it.
func (a *api) checkTargetAccess(ctx echo.Context, target attachment.Target) error {
	chatID := target.ID()
	if target.IsEval() {
		eval, err := a.chats.GetEvaluation(ctx.Request().Context(), target.ID())
		if err != nil {
			return err
		}
		chatID = eval.ChatID
	}
	_, err := a.loadChat(ctx, chatID)
	return err
}

func (a *api) attachHandler(scope attachment.Scope) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		target, err := attachment.ParseTarget(scope, ctx.Param("id"))
		if err != nil {
			return err
		}
		if err = a.checkTargetAccess(ctx, target); err != nil {
			return err
		}
		var data attachmentData
		if err = bind(ctx, &data); err != nil {
			return err
		}

		att, err := a.attachments.Create(ctx.Request().Context(), attachment.NewAttachment{
			OwnerID:     claims.Subject,
			Scope:       scope,
			TargetID:    target.ID(),
			StoragePath: data.StoragePath,
			Metadata:    data.Metadata,
		})
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusCreated, att)
	}
}

func (a *api) listAttachmentsHandler(scope attachment.Scope) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		target, err := attachment.ParseTarget(scope, ctx.Param("id"))
		if err != nil {
			return err
		}
		if err = a.checkTargetAccess(ctx, target); err != nil {
			return err
		}

		var atts []attachment.Attachment
		if target.IsChat() {
			atts, err = a.attachments.ListForChat(ctx.Request().Context(), target.ID())
		} else {
			atts, err = a.attachments.ListForEvaluation(ctx.Request().Context(), target.ID())
		}
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, atts)
	}
}

func (a *api) attachmentDetail(ctx echo.Context) error {
	att, err := a.attachments.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = a.checkTargetAccess(ctx, att.Target); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, att)
}
