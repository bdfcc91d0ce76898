package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	echoapi "github.com/tutoria/tutoria/apps/api/echo"
	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/attachment"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/progress"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
	emailsvc "github.com/tutoria/tutoria/services/email"
	logsvc "github.com/tutoria/tutoria/services/logger"
	"github.com/tutoria/tutoria/storage/database"
	dummydb "github.com/tutoria/tutoria/storage/database/dummy"
	sqlxrepos "github.com/tutoria/tutoria/storage/database/sqlx"
)

// memoryEngine keeps everything in process memory; handy for demos, lost on exit.
const memoryEngine = "memory"

type repositories struct {
	tx          core.Transactor
	users       user.Repository
	classrooms  classroom.Repository
	subjects    subject.Repository
	chats       chat.Repository
	progress    progress.Repository
	attachments attachment.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, closer, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closer.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validator := core.NewValidator(user.InitValidators, classroom.InitValidators, attachment.InitValidators)
	usrSvc := user.NewService(repos.users, validator)
	clsSvc := classroom.NewService(repos.classrooms, repos.users, repos.tx, validator, mailSvc, logger)
	subSvc := subject.NewService(repos.subjects, clsSvc, repos.tx, validator)
	chatSvc := chat.NewService(repos.chats, repos.users, clsSvc, subSvc, repos.tx, validator)
	progSvc := progress.NewService(repos.progress, subSvc, repos.tx, validator)
	attSvc := attachment.NewService(repos.attachments, validator)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			Users:       usrSvc,
			Classrooms:  clsSvc,
			Subjects:    subSvc,
			Chats:       chatSvc,
			Progress:    progSvc,
			Attachments: attSvc,
		},
	)
	server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpDB opens the configured store. Postgres is created and migrated when needed.
func setUpDB(conf *core.Config) (repositories, io.Closer, error) {
	if conf.Database.Engine == memoryEngine {
		db, err := dummydb.Open()
		if err != nil {
			return repositories{}, nil, err
		}
		return repositories{
			tx:          db,
			users:       dummydb.NewUserRepository(db),
			classrooms:  dummydb.NewClassroomRepository(db),
			subjects:    dummydb.NewSubjectRepository(db),
			chats:       dummydb.NewChatRepository(db),
			progress:    dummydb.NewProgressRepository(db),
			attachments: dummydb.NewAttachmentRepository(db),
		}, io.NopCloser(nil), nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, nil, err
	}
	sqlDB, err := database.Open(conf)
	if err != nil {
		return repositories{}, nil, err
	}
	if err = database.Migrate(sqlDB.DB, conf.Database.Engine); err != nil {
		_ = sqlDB.Close()
		return repositories{}, nil, err
	}

	db := sqlxrepos.NewDB(sqlDB)
	return repositories{
		tx:          db,
		users:       sqlxrepos.NewUserRepository(db),
		classrooms:  sqlxrepos.NewClassroomRepository(db),
		subjects:    sqlxrepos.NewSubjectRepository(db),
		chats:       sqlxrepos.NewChatRepository(db),
		progress:    sqlxrepos.NewProgressRepository(db),
		attachments: sqlxrepos.NewAttachmentRepository(db),
	}, sqlDB, nil
}
