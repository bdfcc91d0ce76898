package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/attachment"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/progress"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
	testutil "github.com/tutoria/tutoria/tests"
)

var (
	errForbidden  = httpErr{Error: "permission denied"}
	errNotAMember = httpErr{Error: "user is not an active member of this classroom"}
)

func TestServer_home(t *testing.T) {
	f := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	f.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Tutoria API!", rec.Body.String())
}

func Test_login(t *testing.T) {
	f := setup(t)
	body := func(login, pwd string) []byte {
		return marchallObj(t, map[string]string{"login": login, "password": pwd})
	}
	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{name: "unknown user", body: body("nobody@test.io", testutil.Password), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", body: body(f.student.Email, "nope"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "empty login", body: body("", testutil.Password), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "by email", body: body(f.student.Email, testutil.Password), wantCode: http.StatusOK},
		{name: "by email, any case", body: body("LINUS@test.io", testutil.Password), wantCode: http.StatusOK},
		{name: "by name", body: body("linus", testutil.Password), wantCode: http.StatusOK},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runHTTPTests(t, f.srv, tests)
}

func Test_authentication(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{
			name:     "missing token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "bad token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name:     "me",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, f.student),
		},
	}
	runHTTPTests(t, f.srv, tests)

	t.Run("refresh", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", f.teacherToken)
		f.srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var data struct {
			Token string `json:"token"`
		}
		decode(t, rec, &data)
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", data.Token)
		f.srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, f.teacher)}, rec)
	})

	t.Run("deleted user", func(t *testing.T) {
		require.NoError(t, f.Users.Delete(context.Background(), f.outsider.ID))
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", f.outsiderToken)
		f.srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		}, rec)
	})
}

func Test_users(t *testing.T) {
	f := setup(t)
	newUser := func(email, role string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "Margaret",
			Email:           email,
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            role,
		})
	}

	tests := []httpTest{
		{
			name:     "detail of self",
			method:   http.MethodGet,
			path:     "/v1/users/" + f.student.ID,
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, f.student),
		},
		{
			name:     "detail of someone else",
			method:   http.MethodGet,
			path:     "/v1/users/" + f.teacher.ID,
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "admin detail, unknown",
			method:   http.MethodGet,
			path:     "/v1/users/nope",
			token:    f.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
		{
			name:     "query by role",
			method:   http.MethodGet,
			path:     "/v1/users?role=teacher",
			token:    f.adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.User{f.teacher, f.teacher2}),
		},
		{
			name:     "query, bad role",
			method:   http.MethodGet,
			path:     "/v1/users?role=janitor",
			token:    f.adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "query by a teacher",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    f.teacherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "create by a teacher",
			method:   http.MethodPost,
			path:     "/v1/users",
			body:     newUser("margaret@test.io", user.RoleTeacher),
			token:    f.teacherToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "create, email taken",
			method:   http.MethodPost,
			path:     "/v1/users",
			body:     newUser(f.teacher.Email, user.RoleTeacher),
			token:    f.adminToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "a user with this email already exists"}),
		},
		{
			name:     "create",
			method:   http.MethodPost,
			path:     "/v1/users",
			body:     newUser("margaret@test.io", user.RoleTeacher),
			token:    f.adminToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "delete a user in use",
			method:   http.MethodDelete,
			path:     "/v1/users/" + f.teacher.ID,
			token:    f.adminToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: user.ErrUserInUse.Error()}),
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     "/v1/users/" + f.outsider.ID,
			token:    f.adminToken,
			wantCode: http.StatusNoContent,
		},
	}
	runHTTPTests(t, f.srv, tests)

	usr, err := f.Users.GetByEmail(context.Background(), "margaret@test.io")
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, usr.Role)
	assert.NoError(t, usr.CheckPassword(testutil.Password))
}

func Test_removeStudent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	path := func(usrID string) string { return "/v1/classrooms/" + f.cls.ID + "/students/" + usrID }

	before, err := f.Classrooms.ActiveRoster(ctx, f.cls.ID)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "missing token",
			method:   http.MethodDelete,
			path:     path(f.student.ID),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "by the student",
			method:   http.MethodDelete,
			path:     path(f.student.ID),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "by a teacher of another classroom",
			method:   http.MethodDelete,
			path:     path(f.student.ID),
			token:    f.teacher2Token,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "user never enrolled",
			method:   http.MethodDelete,
			path:     path(f.outsider.ID),
			token:    f.teacherToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, errNotAMember),
		},
		{
			name:     "unknown user",
			method:   http.MethodDelete,
			path:     path("nope"),
			token:    f.adminToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, errNotAMember),
		},
	}
	runHTTPTests(t, f.srv, tests)

	after, err := f.Classrooms.ActiveRoster(ctx, f.cls.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed removals must leave the roster unchanged")

	// remove the active student
	req, rec := newAuthRequest(http.MethodDelete, path(f.student.ID), f.teacherToken)
	f.srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echo.Map{"success": "student removed"}),
	}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/classrooms/"+f.cls.ID+"/roster?active=true", f.teacherToken)
	f.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var active classroom.Roster
	decode(t, rec, &active)
	assert.Empty(t, active.Students)
	assert.Len(t, active.Teachers, 1)

	req, rec = newAuthRequest(http.MethodGet, "/v1/classrooms/"+f.cls.ID+"/roster", f.teacherToken)
	f.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var full classroom.Roster
	decode(t, rec, &full)
	if assert.Len(t, full.Students, 1) {
		assert.Equal(t, f.student.ID, full.Students[0].StudentID)
		assert.Equal(t, classroom.StatusRemoved, full.Students[0].Status)
	}

	runHTTPTests(t, f.srv, []httpTest{
		{
			name:     "removing twice",
			method:   http.MethodDelete,
			path:     path(f.student.ID),
			token:    f.teacherToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, errNotAMember),
		},
		{
			name:     "removed student loses access",
			method:   http.MethodGet,
			path:     "/v1/classrooms/" + f.cls.ID,
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
	})
}

func Test_classrooms(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{
			name:     "create by a student",
			method:   http.MethodPost,
			path:     "/v1/classrooms",
			body:     marchallObj(t, classroom.NewClassroom{Name: "Poetry"}),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "create without a name",
			method:   http.MethodPost,
			path:     "/v1/classrooms",
			body:     marchallObj(t, classroom.NewClassroom{Name: "  "}),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name:     "detail by an outsider",
			method:   http.MethodGet,
			path:     "/v1/classrooms/" + f.cls.ID,
			token:    f.outsiderToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "detail by a student",
			method:   http.MethodGet,
			path:     "/v1/classrooms/" + f.cls.ID,
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, f.cls),
		},
		{
			name:     "admin detail, unknown",
			method:   http.MethodGet,
			path:     "/v1/classrooms/nope",
			token:    f.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "classroom not found"}),
		},
		{
			name:     "update by a student",
			method:   http.MethodPatch,
			path:     "/v1/classrooms/" + f.cls.ID,
			body:     []byte(`{"description": "x"}`),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "theme config must be an object",
			method:   http.MethodPut,
			path:     "/v1/classrooms/" + f.cls.ID + "/theme/config",
			body:     []byte(`{"theme_config": [1, 2]}`),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"theme_config": "must be a JSON object"}),
		},
		{
			name:     "lock theme",
			method:   http.MethodPost,
			path:     "/v1/classrooms/" + f.cls.ID + "/theme/lock",
			token:    f.teacherToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "unlock theme",
			method:   http.MethodPatch,
			path:     "/v1/classrooms/" + f.cls.ID,
			body:     []byte(`{"theme_locked": false}`),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"theme_locked": "a locked theme cannot be unlocked"}),
		},
		{
			name:     "change a locked theme",
			method:   http.MethodPut,
			path:     "/v1/classrooms/" + f.cls.ID + "/theme/config",
			body:     []byte(`{"theme_config": {"color": "red"}}`),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"theme_locked": "the classroom theme is locked and cannot be changed"}),
		},
		{
			name:     "null theme config leaves a locked theme alone",
			method:   http.MethodPatch,
			path:     "/v1/classrooms/" + f.cls.ID,
			body:     []byte(`{"description": "Equations", "theme_config": null}`),
			token:    f.teacherToken,
			wantCode: http.StatusOK,
		},
	}
	runHTTPTests(t, f.srv, tests)

	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/classrooms", f.teacher2Token,
			marchallObj(t, classroom.NewClassroom{Name: " Poetry ", Description: "Verses"}))
		f.srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var cls classroom.Classroom
		decode(t, rec, &cls)
		assert.Equal(t, "Poetry", cls.Name)
		assert.Equal(t, "Poetry", cls.ThemeName)
		assert.Equal(t, f.teacher2.ID, cls.CreatedBy)

		ok, err := f.Classrooms.IsTeacherOf(context.Background(), cls.ID, f.teacher2.ID)
		require.NoError(t, err)
		assert.True(t, ok, "the creator teaches the classroom")
	})

	t.Run("list", func(t *testing.T) {
		list := func(token string) []classroom.Classroom {
			req, rec := newAuthRequest(http.MethodGet, "/v1/classrooms", token)
			f.srv.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var classrooms []classroom.Classroom
			decode(t, rec, &classrooms)
			return classrooms
		}
		names := func(classrooms []classroom.Classroom) []string {
			var nn []string
			for _, cls := range classrooms {
				nn = append(nn, cls.Name)
			}
			return nn
		}

		assert.Equal(t, []string{"Algebra", "Poetry"}, names(list(f.adminToken)))
		assert.Equal(t, []string{"Algebra"}, names(list(f.teacherToken)))
		assert.Equal(t, []string{"Poetry"}, names(list(f.teacher2Token)))
		assert.Equal(t, []string{"Algebra"}, names(list(f.studentToken)))
		assert.Empty(t, list(f.outsiderToken))
	})

	t.Run("create with a null theme config", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/classrooms", f.teacher2Token,
			[]byte(`{"name": "Drama", "theme_config": null}`))
		f.srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var cls classroom.Classroom
		decode(t, rec, &cls)
		assert.JSONEq(t, `{}`, string(cls.ThemeConfig))
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/classrooms/"+f.cls.ID, f.teacher2Token)
		f.srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/classrooms/"+f.cls.ID, f.teacherToken)
		f.srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		_, err := f.Classrooms.Get(context.Background(), f.cls.ID)
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})
}

func Test_students(t *testing.T) {
	f := setup(t)
	studentsPath := "/v1/classrooms/" + f.cls.ID + "/students"
	statusPath := func(usrID string) string { return studentsPath + "/" + usrID + "/status" }

	tests := []httpTest{
		{
			name:     "invite",
			method:   http.MethodPost,
			path:     studentsPath,
			body:     marchallObj(t, classroom.NewStudent{StudentID: f.outsider.ID, Status: classroom.StatusInvited}),
			token:    f.teacherToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "enroll twice",
			method:   http.MethodPost,
			path:     studentsPath,
			body:     marchallObj(t, classroom.NewStudent{StudentID: f.student.ID}),
			token:    f.teacherToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "this user is already enrolled in this classroom"}),
		},
		{
			name:     "enroll as removed",
			method:   http.MethodPost,
			path:     studentsPath,
			body:     marchallObj(t, classroom.NewStudent{StudentID: f.teacher2.ID, Status: classroom.StatusRemoved}),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "someone else accepts the invitation",
			method:   http.MethodPut,
			path:     statusPath(f.outsider.ID),
			body:     marchallObj(t, echo.Map{"status": "active"}),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "invited student cannot remove themselves",
			method:   http.MethodPut,
			path:     statusPath(f.outsider.ID),
			body:     marchallObj(t, echo.Map{"status": "removed"}),
			token:    f.outsiderToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "accept the invitation",
			method:   http.MethodPut,
			path:     statusPath(f.outsider.ID),
			body:     marchallObj(t, echo.Map{"status": "active"}),
			token:    f.outsiderToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "status of a non member",
			method:   http.MethodPut,
			path:     statusPath(f.teacher2.ID),
			body:     marchallObj(t, echo.Map{"status": "removed"}),
			token:    f.teacherToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, errNotAMember),
		},
		{
			name:     "add a co-teacher",
			method:   http.MethodPost,
			path:     "/v1/classrooms/" + f.cls.ID + "/teachers",
			body:     marchallObj(t, classroom.NewTeacher{TeacherID: f.teacher2.ID, RoleLabel: "assistant"}),
			token:    f.teacherToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "students cannot teach",
			method:   http.MethodPost,
			path:     "/v1/classrooms/" + f.cls.ID + "/teachers",
			body:     marchallObj(t, classroom.NewTeacher{TeacherID: f.student.ID}),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"teacher_id": "user must be a teacher or an admin"}),
		},
		{
			name:     "co-teacher removes the owner",
			method:   http.MethodDelete,
			path:     "/v1/classrooms/" + f.cls.ID + "/teachers/" + f.teacher.ID,
			token:    f.teacher2Token,
			wantCode: http.StatusNoContent,
		},
	}
	runHTTPTests(t, f.srv, tests)

	ok, err := f.Classrooms.IsStudentOf(context.Background(), f.cls.ID, f.outsider.ID)
	require.NoError(t, err)
	assert.True(t, ok, "the invitation was accepted")

	sent := f.Mail.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, f.outsider.Email, sent[0].To[0].Address)
	}
}

func Test_chats(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req, rec := newAuthRequest(http.MethodPost, "/v1/chats", f.studentToken, marchallObj(t, echo.Map{
		"classroom_id": f.cls.ID,
		"subject":      echo.Map{"free_text": " Fractions "},
		"topic_source": "homework",
	}))
	f.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess chat.Session
	decode(t, rec, &sess)
	assert.Equal(t, f.student.ID, sess.StudentID)
	assert.Equal(t, "Fractions", sess.Subject.Text())
	assert.Nil(t, sess.EndedAt)

	chatPath := "/v1/chats/" + sess.ID
	evaluation := func(score float64) []byte {
		return marchallObj(t, echo.Map{"overall_score": score, "comments": "Good reasoning"})
	}

	tests := []httpTest{
		{
			name:     "open by a non member",
			method:   http.MethodPost,
			path:     "/v1/chats",
			body:     marchallObj(t, echo.Map{"classroom_id": f.cls.ID}),
			token:    f.outsiderToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, errNotAMember),
		},
		{
			name:     "open for someone else",
			method:   http.MethodPost,
			path:     "/v1/chats",
			body:     marchallObj(t, echo.Map{"classroom_id": f.cls.ID, "student_id": f.outsider.ID}),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:   "open with both subject kinds",
			method: http.MethodPost,
			path:   "/v1/chats",
			body: marchallObj(t, echo.Map{
				"classroom_id": f.cls.ID,
				"subject":      echo.Map{"subject_id": "x", "free_text": "y"},
			}),
			token:    f.studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"subject_id": "only one of subject_id or free_text can be set",
				"free_text":  "only one of subject_id or free_text can be set",
			}),
		},
		{
			name:     "detail by an outsider",
			method:   http.MethodGet,
			path:     chatPath,
			token:    f.outsiderToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "close",
			method:   http.MethodPost,
			path:     chatPath + "/close",
			token:    f.studentToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "close twice",
			method:   http.MethodPost,
			path:     chatPath + "/close",
			token:    f.studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"ended_at": "this chat is already closed"}),
		},
		{
			name:     "evaluate by a teacher of another classroom",
			method:   http.MethodPost,
			path:     chatPath + "/evaluations",
			body:     evaluation(80),
			token:    f.teacher2Token,
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, errNotAMember),
		},
		{
			name:     "evaluate out of range",
			method:   http.MethodPost,
			path:     chatPath + "/evaluations",
			body:     evaluation(100.5),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"overall_score": "score must be between 0 and 100 with at most two decimal places",
			}),
		},
		{
			name:     "evaluate",
			method:   http.MethodPost,
			path:     chatPath + "/evaluations",
			body:     evaluation(87.5),
			token:    f.teacherToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "evaluate unknown chat",
			method:   http.MethodPost,
			path:     "/v1/chats/nope/evaluations",
			body:     evaluation(50),
			token:    f.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "chat not found"}),
		},
		{
			name:     "summary of an evaluated chat",
			method:   http.MethodPut,
			path:     chatPath + "/summary",
			body:     marchallObj(t, echo.Map{"summary": "too late"}),
			token:    f.studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"summary": "an evaluated chat cannot be modified"}),
		},
		{
			name:     "automated evaluation by the student",
			method:   http.MethodPost,
			path:     chatPath + "/automated-evaluations",
			body:     []byte(`{"bot_evaluation": {"score": 0.8}}`),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "no automated evaluation yet",
			method:   http.MethodGet,
			path:     chatPath + "/automated-evaluations/latest",
			token:    f.studentToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "automated evaluation must be an object",
			method:   http.MethodPost,
			path:     chatPath + "/automated-evaluations",
			body:     []byte(`{"bot_evaluation": "great"}`),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"bot_evaluation": "must be a JSON object"}),
		},
		{
			name:     "automated evaluation",
			method:   http.MethodPost,
			path:     chatPath + "/automated-evaluations",
			body:     []byte(`{"bot_evaluation": {"score": 0.8}}`),
			token:    f.teacherToken,
			wantCode: http.StatusCreated,
		},
	}
	runHTTPTests(t, f.srv, tests)

	ov, err := f.Chats.GetOverview(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, ov.Evaluations, 1)
	require.NotNil(t, ov.LatestAutomated)
	assert.Equal(t, 87.5, ov.Evaluations[0].OverallScore)
	assert.NotNil(t, ov.Session.EndedAt)

	runHTTPTests(t, f.srv, []httpTest{
		{
			name:     "overview",
			method:   http.MethodGet,
			path:     chatPath,
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ov),
		},
		{
			name:     "evaluation detail",
			method:   http.MethodGet,
			path:     "/v1/evaluations/" + ov.Evaluations[0].ID,
			token:    f.teacherToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ov.Evaluations[0]),
		},
		{
			name:     "latest automated evaluation",
			method:   http.MethodGet,
			path:     chatPath + "/automated-evaluations/latest",
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ov.LatestAutomated),
		},
	})

	t.Run("list", func(t *testing.T) {
		list := func(token string, query url.Values) []chat.Session {
			req, rec := newAuthRequest(http.MethodGet, "/v1/chats?"+query.Encode(), token)
			f.srv.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var sessions []chat.Session
			decode(t, rec, &sessions)
			return sessions
		}
		ids := func(sessions []chat.Session) []string {
			var ii []string
			for _, s := range sessions {
				ii = append(ii, s.ID)
			}
			return ii
		}
		byClassroom := url.Values{"classroom_id": {f.cls.ID}}

		assert.Equal(t, []string{sess.ID}, ids(list(f.studentToken, nil)))
		assert.Equal(t, []string{sess.ID}, ids(list(f.teacherToken, byClassroom)))
		assert.Equal(t, []string{sess.ID}, ids(list(f.adminToken, nil)))
		assert.Empty(t, list(f.teacherToken, nil), "teachers only see chats of their classrooms")
		assert.Empty(t, list(f.outsiderToken, byClassroom), "students only see their own chats")
		assert.Empty(t, list(f.outsiderToken, url.Values{"student_id": {f.student.ID}}))
	})

	t.Run("null content, then close after evaluation", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/chats", f.studentToken,
			[]byte(`{"classroom_id": "`+f.cls.ID+`", "content": null}`))
		f.srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var other chat.Session
		decode(t, rec, &other)
		assert.JSONEq(t, `{}`, string(other.Content))

		otherPath := "/v1/chats/" + other.ID
		runHTTPTests(t, f.srv, []httpTest{
			{
				name:     "evaluate",
				method:   http.MethodPost,
				path:     otherPath + "/evaluations",
				body:     evaluation(60),
				token:    f.teacherToken,
				wantCode: http.StatusCreated,
			},
			{
				name:     "close an evaluated chat",
				method:   http.MethodPost,
				path:     otherPath + "/close",
				token:    f.studentToken,
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"ended_at": "an evaluated chat cannot be closed"}),
			},
		})

		got, err := f.Chats.Get(ctx, other.ID)
		require.NoError(t, err)
		assert.Nil(t, got.EndedAt)
	})
}

func Test_subjects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	clsPath := "/v1/classrooms/" + f.cls.ID

	req, rec := newAuthRequest(http.MethodPost, clsPath+"/subjects", f.teacherToken, marchallObj(t, echo.Map{"name": "Geometry"}))
	f.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var geometry subject.Subject
	decode(t, rec, &geometry)
	assert.True(t, geometry.IsActive)
	assert.Equal(t, f.teacher.ID, geometry.CreatedBy)

	prefs := func(refs ...interface{}) []byte {
		return marchallObj(t, echo.Map{"subjects": refs})
	}

	tests := []httpTest{
		{
			name:     "create by a student",
			method:   http.MethodPost,
			path:     clsPath + "/subjects",
			body:     marchallObj(t, echo.Map{"name": "Music"}),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "duplicate name",
			method:   http.MethodPost,
			path:     clsPath + "/subjects",
			body:     marchallObj(t, echo.Map{"name": "GEOMETRY"}),
			token:    f.teacherToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "a subject with this name already exists in this classroom"}),
		},
		{
			name:     "catalog",
			method:   http.MethodGet,
			path:     clsPath + "/subjects",
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []subject.Subject{geometry}),
		},
		{
			name:     "preferences of a non member",
			method:   http.MethodPut,
			path:     clsPath + "/preferences",
			body:     prefs(echo.Map{"free_text": "Chess"}),
			token:    f.outsiderToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, errNotAMember),
		},
		{
			name:     "preferences of another student",
			method:   http.MethodPut,
			path:     clsPath + "/preferences",
			body:     marchallObj(t, echo.Map{"student_id": f.outsider.ID, "subjects": []interface{}{}}),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "replace preferences",
			method:   http.MethodPut,
			path:     clsPath + "/preferences",
			body:     prefs(echo.Map{"subject_id": geometry.ID}, echo.Map{"free_text": "Chess"}),
			token:    f.studentToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "delete by a student",
			method:   http.MethodDelete,
			path:     "/v1/subjects/" + geometry.ID,
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "deactivate",
			method:   http.MethodPut,
			path:     "/v1/subjects/" + geometry.ID + "/active",
			body:     marchallObj(t, echo.Map{"is_active": false}),
			token:    f.teacherToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "prefer an inactive subject",
			method:   http.MethodPost,
			path:     clsPath + "/preferences",
			body:     marchallObj(t, echo.Map{"subject": echo.Map{"subject_id": geometry.ID}, "priority": 3}),
			token:    f.studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject_id": "subject is not active"}),
		},
	}
	runHTTPTests(t, f.srv, tests)

	list, err := f.Subjects.ListPreferences(ctx, f.student.ID, f.cls.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, geometry.ID, list[0].Subject.SubjectID())
	assert.Equal(t, "Chess", list[1].Subject.Text())

	runHTTPTests(t, f.srv, []httpTest{
		{
			name:     "list preferences as a teacher",
			method:   http.MethodGet,
			path:     clsPath + "/preferences?student_id=" + f.student.ID,
			token:    f.teacherToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, list),
		},
		{
			name:     "delete a preference",
			method:   http.MethodDelete,
			path:     "/v1/preferences/" + list[1].ID,
			token:    f.studentToken,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "inactive subjects are hidden",
			method:   http.MethodGet,
			path:     clsPath + "/subjects?active=true",
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
	})
}

func Test_progress(t *testing.T) {
	f := setup(t)
	t0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	score := func(studentID, metric string, value float64, at time.Time) progress.NewScore {
		return progress.NewScore{
			StudentID:   studentID,
			ClassroomID: f.cls.ID,
			Subject:     subject.FreeText("Fractions"),
			Metric:      metric,
			Score:       value,
			RecordedAt:  at,
		}
	}
	testutil.Enroll(t, f.Classrooms, f.cls, f.outsider)

	tests := []httpTest{
		{
			name:     "record by a student",
			method:   http.MethodPost,
			path:     "/v1/progress",
			body:     marchallObj(t, score(f.student.ID, "accuracy", 70, t0)),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "record by a teacher of another classroom",
			method:   http.MethodPost,
			path:     "/v1/progress",
			body:     marchallObj(t, score(f.student.ID, "accuracy", 70, t0)),
			token:    f.teacher2Token,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "record out of range",
			method:   http.MethodPost,
			path:     "/v1/progress",
			body:     marchallObj(t, score(f.student.ID, "accuracy", -1, t0)),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "record",
			method:   http.MethodPost,
			path:     "/v1/progress",
			body:     marchallObj(t, score(f.student.ID, "accuracy", 70, t0)),
			token:    f.teacherToken,
			wantCode: http.StatusCreated,
		},
		{
			name:   "batch",
			method: http.MethodPost,
			path:   "/v1/progress/batch",
			body: marchallObj(t, []progress.NewScore{
				score(f.student.ID, "accuracy", 80, t0.Add(24*time.Hour)),
				score(f.outsider.ID, "accuracy", 90, t0.Add(48*time.Hour)),
			}),
			token:    f.teacherToken,
			wantCode: http.StatusCreated,
		},
		{
			name:   "batch is all or nothing",
			method: http.MethodPost,
			path:   "/v1/progress/batch",
			body: marchallObj(t, []progress.NewScore{
				score(f.student.ID, "speed", 50, t0),
				score(f.student.ID, "speed", 500, t0),
			}),
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad date",
			method:   http.MethodGet,
			path:     "/v1/progress?from=yesterday",
			token:    f.teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"from": "must be an RFC 3339 timestamp or a YYYY-MM-DD date"}),
		},
	}
	runHTTPTests(t, f.srv, tests)

	query := func(token string, q url.Values) []progress.Score {
		req, rec := newAuthRequest(http.MethodGet, "/v1/progress?"+q.Encode(), token)
		f.srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var scores []progress.Score
		decode(t, rec, &scores)
		return scores
	}
	values := func(scores []progress.Score) []float64 {
		var vv []float64
		for _, s := range scores {
			vv = append(vv, s.Score)
		}
		return vv
	}
	byClassroom := url.Values{"classroom_id": {f.cls.ID}}

	assert.Equal(t, []float64{70, 80, 90}, values(query(f.teacherToken, byClassroom)))
	assert.Equal(t, []float64{70, 80}, values(query(f.studentToken, byClassroom)), "students only see their own scores")
	assert.Equal(t, []float64{90}, values(query(f.outsiderToken, nil)))
	assert.Equal(t, []float64{80, 90}, values(query(f.adminToken, url.Values{"from": {"2024-03-05"}})))
	assert.Equal(t, []float64{70, 80, 90}, values(query(f.adminToken, url.Values{"free_text": {"FRACTIONS"}})))
	assert.Empty(t, query(f.teacherToken, url.Values{"metric": {"speed"}}))
}

func Test_attachments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sess, err := f.Chats.Open(ctx, chat.NewSession{StudentID: f.student.ID, ClassroomID: f.cls.ID})
	require.NoError(t, err)
	eval, err := f.Chats.Evaluate(ctx, chat.NewEvaluation{
		ChatID:       sess.ID,
		EvaluatorID:  f.teacher.ID,
		OverallScore: 60,
		Comments:     "Needs practice",
	})
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "attach to an unknown chat",
			method:   http.MethodPost,
			path:     "/v1/chats/nope/attachments",
			body:     marchallObj(t, echo.Map{"storage_path": "a.png"}),
			token:    f.adminToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "attach to someone else's chat",
			method:   http.MethodPost,
			path:     "/v1/chats/" + sess.ID + "/attachments",
			body:     marchallObj(t, echo.Map{"storage_path": "a.png"}),
			token:    f.outsiderToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "attach without a path",
			method:   http.MethodPost,
			path:     "/v1/chats/" + sess.ID + "/attachments",
			body:     marchallObj(t, echo.Map{"storage_path": " "}),
			token:    f.studentToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "attach to a chat",
			method:   http.MethodPost,
			path:     "/v1/chats/" + sess.ID + "/attachments",
			body:     marchallObj(t, echo.Map{"storage_path": "drawings/triangle.png", "metadata": echo.Map{"size": 42}}),
			token:    f.studentToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "attach to an evaluation",
			method:   http.MethodPost,
			path:     "/v1/evaluations/" + eval.ID + "/attachments",
			body:     marchallObj(t, echo.Map{"storage_path": "feedback.pdf"}),
			token:    f.teacherToken,
			wantCode: http.StatusCreated,
		},
	}
	runHTTPTests(t, f.srv, tests)

	chatAtts, err := f.Attachments.ListForChat(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, chatAtts, 1)
	assert.Equal(t, f.student.ID, chatAtts[0].OwnerID)
	assert.Equal(t, attachment.ScopeChat, chatAtts[0].Target.Scope())

	evalAtts, err := f.Attachments.ListForEvaluation(ctx, eval.ID)
	require.NoError(t, err)
	require.Len(t, evalAtts, 1)
	assert.Equal(t, attachment.ScopeEvaluation, evalAtts[0].Target.Scope())

	runHTTPTests(t, f.srv, []httpTest{
		{
			name:     "list chat attachments",
			method:   http.MethodGet,
			path:     "/v1/chats/" + sess.ID + "/attachments",
			token:    f.teacherToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, chatAtts),
		},
		{
			name:     "list evaluation attachments",
			method:   http.MethodGet,
			path:     "/v1/evaluations/" + eval.ID + "/attachments",
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, evalAtts),
		},
		{
			name:     "detail by an outsider",
			method:   http.MethodGet,
			path:     "/v1/attachments/" + evalAtts[0].ID,
			token:    f.outsiderToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "detail",
			method:   http.MethodGet,
			path:     "/v1/attachments/" + evalAtts[0].ID,
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, evalAtts[0]),
		},
	})
}

func Test_documents(t *testing.T) {
	f := setup(t)
	docsPath := "/v1/classrooms/" + f.cls.ID + "/documents"

	req, rec := newAuthRequest(http.MethodPost, docsPath, f.teacherToken, marchallObj(t, classroom.NewDocument{
		Name:        "Syllabus",
		StoragePath: "algebra/syllabus.pdf",
		ContentType: "application/pdf",
		FileSize:    1024,
	}))
	f.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc classroom.Document
	decode(t, rec, &doc)
	assert.Equal(t, classroom.DefaultDocumentBucket, doc.StorageBucket)
	assert.Equal(t, f.teacher.ID, doc.UploadedBy)

	other := testutil.CreateClassroom(t, f.Classrooms, "Poetry", f.teacher2)

	tests := []httpTest{
		{
			name:     "upload by a student",
			method:   http.MethodPost,
			path:     docsPath,
			body:     marchallObj(t, classroom.NewDocument{Name: "Notes", StoragePath: "notes.txt"}),
			token:    f.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "list",
			method:   http.MethodGet,
			path:     docsPath,
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []classroom.Document{doc}),
		},
		{
			name:     "detail through another classroom",
			method:   http.MethodGet,
			path:     "/v1/classrooms/" + other.ID + "/documents/" + doc.ID,
			token:    f.teacher2Token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "classroom document not found"}),
		},
		{
			name:     "detail",
			method:   http.MethodGet,
			path:     docsPath + "/" + doc.ID,
			token:    f.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, doc),
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     docsPath + "/" + doc.ID,
			token:    f.teacherToken,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "detail of a deleted document",
			method:   http.MethodGet,
			path:     docsPath + "/" + doc.ID,
			token:    f.studentToken,
			wantCode: http.StatusNotFound,
		},
	}
	runHTTPTests(t, f.srv, tests)
}
