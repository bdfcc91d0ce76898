package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/tutoria/tutoria/apps/api/echo"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/user"
	testutil "github.com/tutoria/tutoria/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// fixture is a classroom taught by teacher, with student enrolled and outsider left out.
type fixture struct {
	*testutil.Services
	srv      *echoapi.Server
	admin    user.User
	teacher  user.User
	teacher2 user.User
	student  user.User
	outsider user.User
	cls      classroom.Classroom

	adminToken, teacherToken, teacher2Token, studentToken, outsiderToken string
}

func setup(t *testing.T) *fixture {
	svcs := testutil.NewServices(t)
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        testutil.NewConfig(),
		Logger:      testutil.NewLogger(),
		Users:       svcs.Users,
		Classrooms:  svcs.Classrooms,
		Subjects:    svcs.Subjects,
		Chats:       svcs.Chats,
		Progress:    svcs.Progress,
		Attachments: svcs.Attachments,
	})

	f := &fixture{Services: svcs, srv: srv}
	f.admin = testutil.CreateUser(t, svcs.UserRepo, "Root", "root@test.io", user.RoleAdmin, testutil.Password)
	f.teacher = testutil.CreateUser(t, svcs.UserRepo, "Ada", "ada@test.io", user.RoleTeacher, testutil.Password)
	f.teacher2 = testutil.CreateUser(t, svcs.UserRepo, "Grace", "grace@test.io", user.RoleTeacher, testutil.Password)
	f.student = testutil.CreateUser(t, svcs.UserRepo, "Linus", "linus@test.io", user.RoleStudent, testutil.Password)
	f.outsider = testutil.CreateUser(t, svcs.UserRepo, "Ken", "ken@test.io", user.RoleStudent, testutil.Password)
	f.cls = testutil.CreateClassroom(t, svcs.Classrooms, "Algebra", f.teacher)
	testutil.Enroll(t, svcs.Classrooms, f.cls, f.student)

	f.adminToken = getToken(t, srv, f.admin.Email)
	f.teacherToken = getToken(t, srv, f.teacher.Email)
	f.teacher2Token = getToken(t, srv, f.teacher2.Email)
	f.studentToken = getToken(t, srv, f.student.Email)
	f.outsiderToken = getToken(t, srv, f.outsider.Email)
	return f
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, srv http.Handler, login string) string {
	body := marchallObj(t, map[string]string{"login": login, "password": testutil.Password})
	req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// checkCodeAndData compares the status code, and the JSON body unless wantData is nil.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHTTPTests(t *testing.T, srv http.Handler, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// decode unmarshals the body of rec into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
