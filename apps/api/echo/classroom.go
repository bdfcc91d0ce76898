package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutoria/tutoria/core/classroom"
)

type (
	themeConfigData struct {
		ThemeConfig json.RawMessage `json:"theme_config"`
	}

	studentStatusData struct {
		Status classroom.StudentStatus `json:"status"`
	}
)

func registerClassroomAPI(router *echo.Group, jwt echo.MiddlewareFunc, a *api) {
	g := router.Group("/classrooms", jwt)

	g.POST("", a.createClassroom, teacherMiddleware)
	g.GET("", a.listClassrooms)
	g.GET("/:id", a.classroomDetail)
	g.PATCH("/:id", a.updateClassroom)
	g.DELETE("/:id", a.deleteClassroom)
	g.PUT("/:id/theme/config", a.setThemeConfig)
	g.POST("/:id/theme/lock", a.lockTheme)

	g.GET("/:id/roster", a.roster)
	g.POST("/:id/teachers", a.addTeacher)
	g.DELETE("/:id/teachers/:userId", a.removeTeacher)
	g.POST("/:id/students", a.addStudent)
	g.PUT("/:id/students/:userId/status", a.setStudentStatus)
	g.DELETE("/:id/students/:userId", a.removeStudent)

	g.GET("/:id/documents", a.listDocuments)
	g.POST("/:id/documents", a.addDocument)
	g.GET("/:id/documents/:docId", a.documentDetail)
	g.DELETE("/:id/documents/:docId", a.deleteDocument)
}

func (a *api) createClassroom(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewClassroom
	if err = bind(ctx, &data); err != nil {
		return err
	}
	cls, err := a.classrooms.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cls)
}

// listClassrooms lists every classroom for admins (?include_archived=true for archived ones too),
// and the caller's own classrooms otherwise.
func (a *api) listClassrooms(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()

	var classrooms []classroom.Classroom
	switch {
	case claims.IsAdmin:
		archived, err := queryBool(ctx.QueryParams(), "include_archived")
		if err != nil {
			return err
		}
		classrooms, err = a.classrooms.List(rctx, archived)
		if err != nil {
			return err
		}
	case claims.IsTeacher:
		if classrooms, err = a.classrooms.ListForTeacher(rctx, claims.Subject); err != nil {
			return err
		}
	default:
		if classrooms, err = a.classrooms.ListForStudent(rctx, claims.Subject); err != nil {
			return err
		}
	}
	return ctx.JSON(http.StatusOK, classrooms)
}

func (a *api) classroomDetail(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, false); err != nil {
		return err
	}
	cls, err := a.classrooms.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (a *api) updateClassroom(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	var data classroom.UpdateClassroom
	if err := bind(ctx, &data); err != nil {
		return err
	}
	cls, err := a.classrooms.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (a *api) deleteClassroom(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	if err := a.classrooms.Delete(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (a *api) setThemeConfig(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	var data themeConfigData
	if err := bind(ctx, &data); err != nil {
		return err
	}
	cls, err := a.classrooms.SetThemeConfig(ctx.Request().Context(), id, data.ThemeConfig)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (a *api) lockTheme(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	cls, err := a.classrooms.LockTheme(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

// roster returns the full roster, tombstones included; ?active=true leaves removed students out.
func (a *api) roster(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, false); err != nil {
		return err
	}
	active, err := queryBool(ctx.QueryParams(), "active")
	if err != nil {
		return err
	}

	var roster classroom.Roster
	if active {
		roster, err = a.classrooms.ActiveRoster(ctx.Request().Context(), id)
	} else {
		roster, err = a.classrooms.Roster(ctx.Request().Context(), id)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (a *api) addTeacher(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	var data classroom.NewTeacher
	if err := bind(ctx, &data); err != nil {
		return err
	}
	teacher, err := a.classrooms.AddTeacher(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, teacher)
}

func (a *api) removeTeacher(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	if err := a.classrooms.RemoveTeacher(ctx.Request().Context(), id, ctx.Param("userId")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (a *api) addStudent(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	var data classroom.NewStudent
	if err := bind(ctx, &data); err != nil {
		return err
	}
	std, err := a.classrooms.AddStudent(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, std)
}

// setStudentStatus lets teachers move a student along; a student may only accept their own invitation.
func (a *api) setStudentStatus(ctx echo.Context) error {
	id, studentID := ctx.Param("id"), ctx.Param("userId")
	var data studentStatusData
	if err := bind(ctx, &data); err != nil {
		return err
	}

	var err error
	if data.Status == classroom.StatusActive {
		err = a.checkSelfOrTeacher(ctx, id, studentID)
	} else {
		err = a.checkClassroomAccess(ctx, id, true)
	}
	if err != nil {
		return err
	}

	std, err := a.classrooms.SetStudentStatus(ctx.Request().Context(), id, studentID, data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, std)
}

func (a *api) removeStudent(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	if err := a.classrooms.RemoveStudent(ctx.Request().Context(), id, ctx.Param("userId")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": "student removed"})
}

// Documents

func (a *api) listDocuments(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, false); err != nil {
		return err
	}
	docs, err := a.classrooms.ListDocuments(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, docs)
}

func (a *api) addDocument(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	uploader, err := a.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewDocument
	if err = bind(ctx, &data); err != nil {
		return err
	}
	doc, err := a.classrooms.AddDocument(ctx.Request().Context(), id, data, uploader)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, doc)
}

// classroomDocument loads a document and makes sure it belongs to the classroom of the URL.
func (a *api) classroomDocument(ctx echo.Context) (classroom.Document, error) {
	doc, err := a.classrooms.GetDocument(ctx.Request().Context(), ctx.Param("docId"))
	if err != nil {
		return classroom.Document{}, err
	}
	if doc.ClassroomID != ctx.Param("id") {
		return classroom.Document{}, classroom.ErrDocumentNotFound
	}
	return doc, nil
}

func (a *api) documentDetail(ctx echo.Context) error {
	if err := a.checkClassroomAccess(ctx, ctx.Param("id"), false); err != nil {
		return err
	}
	doc, err := a.classroomDocument(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (a *api) deleteDocument(ctx echo.Context) error {
	if err := a.checkClassroomAccess(ctx, ctx.Param("id"), true); err != nil {
		return err
	}
	doc, err := a.classroomDocument(ctx)
	if err != nil {
		return err
	}
	if err = a.classrooms.DeleteDocument(ctx.Request().Context(), doc.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
