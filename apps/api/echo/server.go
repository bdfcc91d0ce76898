package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/attachment"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/progress"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
)

type (
	ServerDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		Users       *user.Service
		Classrooms  *classroom.Service
		Subjects    *subject.Service
		Chats       *chat.Service
		Progress    *progress.Service
		Attachments *attachment.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}

	// api holds what every route handler needs.
	api struct {
		auth        *authenticator
		users       *user.Service
		classrooms  *classroom.Service
		subjects    *subject.Service
		chats       *chat.Service
		progress    *progress.Service
		attachments *attachment.Service
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	a := &api{
		auth:        newAuthenticator(conf, s.deps.Users),
		users:       s.deps.Users,
		classrooms:  s.deps.Classrooms,
		subjects:    s.deps.Subjects,
		chats:       s.deps.Chats,
		progress:    s.deps.Progress,
		attachments: s.deps.Attachments,
	}
	v1 := s.app.Group("/v1")
	jwt := a.auth.middleware()

	registerUserAPI(v1, jwt, a)
	registerClassroomAPI(v1, jwt, a)
	registerSubjectAPI(v1, jwt, a)
	registerChatAPI(v1, jwt, a)
	registerProgressAPI(v1, jwt, a)
	registerAttachmentAPI(v1, jwt, a)
}

// Start listens in the background; failures are reported on Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
			s.errors <- err
		}
	}()
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
