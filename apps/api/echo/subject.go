package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutoria/tutoria/core/subject"
)

type (
	subjectData struct {
		Name string `json:"name"`
	}

	subjectActiveData struct {
		IsActive bool `json:"is_active"`
	}

	preferencesData struct {
		StudentID string        `json:"student_id"`
		Subjects  []subject.Ref `json:"subjects"`
	}
)

func registerSubjectAPI(router *echo.Group, jwt echo.MiddlewareFunc, a *api) {
	router.POST("/classrooms/:id/subjects", a.createSubject, jwt)
	router.GET("/classrooms/:id/subjects", a.listSubjects, jwt)
	router.GET("/classrooms/:id/preferences", a.listPreferences, jwt)
	router.POST("/classrooms/:id/preferences", a.setPreference, jwt)
	router.PUT("/classrooms/:id/preferences", a.replacePreferences, jwt)

	g := router.Group("/subjects", jwt)
	g.GET("/:id", a.subjectDetail)
	g.PUT("/:id/active", a.setSubjectActive)
	g.DELETE("/:id", a.deleteSubject)

	router.DELETE("/preferences/:id", a.deletePreference, jwt)
}

func (a *api) createSubject(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, true); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data subjectData
	if err = bind(ctx, &data); err != nil {
		return err
	}
	sub, err := a.subjects.Create(ctx.Request().Context(), subject.NewSubject{
		ClassroomID: id,
		Name:        data.Name,
		CreatedBy:   claims.Subject,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

// listSubjects lists the classroom catalog; ?active=true hides retired subjects.
func (a *api) listSubjects(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := a.checkClassroomAccess(ctx, id, false); err != nil {
		return err
	}
	active, err := queryBool(ctx.QueryParams(), "active")
	if err != nil {
		return err
	}
	subjects, err := a.subjects.ListForClassroom(ctx.Request().Context(), id, active)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subjects)
}

// loadSubject fetches the subject of the URL and checks the caller's access to its classroom.
func (a *api) loadSubject(ctx echo.Context, teacherOnly bool) (subject.Subject, error) {
	sub, err := a.subjects.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return subject.Subject{}, err
	}
	if err = a.checkClassroomAccess(ctx, sub.ClassroomID, teacherOnly); err != nil {
		return subject.Subject{}, err
	}
	return sub, nil
}

func (a *api) subjectDetail(ctx echo.Context) error {
	sub, err := a.loadSubject(ctx, false)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (a *api) setSubjectActive(ctx echo.Context) error {
	sub, err := a.loadSubject(ctx, true)
	if err != nil {
		return err
	}
	var data subjectActiveData
	if err = bind(ctx, &data); err != nil {
		return err
	}
	if sub, err = a.subjects.SetActive(ctx.Request().Context(), sub.ID, data.IsActive); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (a *api) deleteSubject(ctx echo.Context) error {
	sub, err := a.loadSubject(ctx, true)
	if err != nil {
		return err
	}
	if err = a.subjects.Delete(ctx.Request().Context(), sub.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Preferences

// preferenceStudent defaults studentID to the caller and checks they may manage that student's preferences.
func (a *api) preferenceStudent(ctx echo.Context, classroomID, studentID string) (string, error) {
	if studentID == "" {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return "", err
		}
		studentID = claims.Subject
	}
	if err := a.checkSelfOrTeacher(ctx, classroomID, studentID); err != nil {
		return "", err
	}
	return studentID, nil
}

func (a *api) listPreferences(ctx echo.Context) error {
	id := ctx.Param("id")
	studentID, err := a.preferenceStudent(ctx, id, ctx.QueryParam("student_id"))
	if err != nil {
		return err
	}
	prefs, err := a.subjects.ListPreferences(ctx.Request().Context(), studentID, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prefs)
}

func (a *api) setPreference(ctx echo.Context) error {
	id := ctx.Param("id")
	var data subject.NewPreference
	if err := bind(ctx, &data); err != nil {
		return err
	}
	studentID, err := a.preferenceStudent(ctx, id, data.StudentID)
	if err != nil {
		return err
	}
	data.StudentID, data.ClassroomID = studentID, id

	pref, err := a.subjects.SetPreference(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, pref)
}

// replacePreferences swaps the whole ranked list; priorities follow the order of subjects.
func (a *api) replacePreferences(ctx echo.Context) error {
	id := ctx.Param("id")
	var data preferencesData
	if err := bind(ctx, &data); err != nil {
		return err
	}
	studentID, err := a.preferenceStudent(ctx, id, data.StudentID)
	if err != nil {
		return err
	}
	prefs, err := a.subjects.ReplacePreferences(ctx.Request().Context(), studentID, id, data.Subjects)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prefs)
}

func (a *api) deletePreference(ctx echo.Context) error {
	pref, err := a.subjects.GetPreference(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = a.checkSelfOrTeacher(ctx, pref.ClassroomID, pref.StudentID); err != nil {
		return err
	}
	if err = a.subjects.DeletePreference(ctx.Request().Context(), pref.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
