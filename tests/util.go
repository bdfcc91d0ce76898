package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/attachment"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/progress"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
	"github.com/tutoria/tutoria/services/email"
	"github.com/tutoria/tutoria/services/logger"
	"github.com/tutoria/tutoria/storage/database"
	"github.com/tutoria/tutoria/storage/database/dummy"
	"github.com/tutoria/tutoria/storage/database/sqlx"
)

// Password satisfies the password policy of user.NewUser.
const Password = "S3cret-pass!"

func NewConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Tutoria",
		Build:            "test",
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Name: "Tutoria", Address: "noreply@localhost"},
		Server: core.ServerConfig{
			Address:                   ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Database: core.DatabaseConfig{
			Engine:     "postgres",
			Host:       "localhost",
			Port:       5432,
			DisableTLS: true,
		},
	}
}

func NewValidator() *core.Validator {
	return core.NewValidator(user.InitValidators, classroom.InitValidators, attachment.InitValidators)
}

// NewLogger returns a logger that reports nowhere.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
}

// Services wires every domain service on a fresh in-memory store.
type Services struct {
	DB          *dummydb.DB
	UserRepo    user.Repository
	Mail        *emailsvc.ConsoleServiceMock
	Users       *user.Service
	Classrooms  *classroom.Service
	Subjects    *subject.Service
	Chats       *chat.Service
	Progress    *progress.Service
	Attachments *attachment.Service
}

func NewServices(t *testing.T) *Services {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	conf := NewConfig()
	logger := NewLogger()
	validator := NewValidator()
	usrRepo := dummydb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	svcs := &Services{DB: db, UserRepo: usrRepo, Mail: mailSvc}
	svcs.Users = user.NewService(usrRepo, validator)
	svcs.Classrooms = classroom.NewService(dummydb.NewClassroomRepository(db), usrRepo, db, validator, mailSvc, logger)
	svcs.Subjects = subject.NewService(dummydb.NewSubjectRepository(db), svcs.Classrooms, db, validator)
	svcs.Chats = chat.NewService(dummydb.NewChatRepository(db), usrRepo, svcs.Classrooms, svcs.Subjects, db, validator)
	svcs.Progress = progress.NewService(dummydb.NewProgressRepository(db), svcs.Subjects, db, validator)
	svcs.Attachments = attachment.NewService(dummydb.NewAttachmentRepository(db), validator)
	return svcs
}

// CreateUser inserts a user straight into repo. An empty pwd leaves the user without a usable password.
func CreateUser(t *testing.T, repo user.Repository, name, email, role, pwd string, createdAt ...time.Time) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateClassroom creates a classroom owned by the given teacher.
func CreateClassroom(t *testing.T, svc *classroom.Service, name string, owner user.User) classroom.Classroom {
	cls, err := svc.Create(context.Background(), classroom.NewClassroom{Name: name}, owner.ID)
	if err != nil {
		t.Fatalf("createClassroom() failed: %v", err)
	}
	return cls
}

// Enroll adds an active student to the classroom.
func Enroll(t *testing.T, svc *classroom.Service, cls classroom.Classroom, std user.User) classroom.Student {
	s, err := svc.AddStudent(context.Background(), cls.ID, classroom.NewStudent{StudentID: std.ID})
	if err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
	return s
}

// PrepareDB connects to the postgres test database, migrates it and empties every table.
// The test is skipped when TEST_DATABASE_NAME is not set.
func PrepareDB(t *testing.T) *sqlxrepos.DB {
	name := os.Getenv("TEST_DATABASE_NAME")
	if name == "" {
		t.Skip("TEST_DATABASE_NAME not set")
	}
	conf := NewConfig()
	conf.Database.Name = name
	conf.Database.User = getenv("TEST_DATABASE_USER", "postgres")
	conf.Database.Password = os.Getenv("TEST_DATABASE_PASSWORD")
	conf.Database.Host = getenv("TEST_DATABASE_HOST", "localhost")
	if port, err := strconv.Atoi(os.Getenv("TEST_DATABASE_PORT")); err == nil {
		conf.Database.Port = port
	}

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, conf.Database.Engine); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	const truncate = `TRUNCATE users, classrooms, classroom_teachers, classroom_students, classroom_subjects,
		student_subject_preferences, chats, chat_evaluations, automated_chat_evaluations,
		progress_scores, attachments, classroom_documents CASCADE`
	if _, err = db.Exec(truncate); err != nil {
		t.Fatalf("truncating tables failed: %v", err)
	}
	return sqlxrepos.NewDB(db)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
