package classroom

import (
	"context"
	"net/mail"
	texttmpl "text/template"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("classroom")
	ErrMembershipNotFound = core.NewNotFoundError("classroom membership")
	ErrDocumentNotFound   = core.NewNotFoundError("classroom document")
	ErrTeacherExists      = core.NewConflictError("this user already teaches this classroom")
	ErrStudentExists      = core.NewConflictError("this user is already enrolled in this classroom")
	ErrThemeLocked        = core.NewFieldError("theme_locked", "the classroom theme is locked and cannot be changed")
	ErrThemeUnlock        = core.NewFieldError("theme_locked", "a locked theme cannot be unlocked")
	ErrNotTeacher         = core.NewFieldError("teacher_id", "user must be a teacher or an admin")
	ErrNotStudent         = core.NewFieldError("student_id", "user must be a student or an admin")
	ErrBadEnrollStatus    = core.NewFieldError("status", "a student can only be enrolled as invited or active")
	errStatusRace         = core.NewConflictError("the student status changed concurrently")
)

var invitationTmpl = texttmpl.Must(texttmpl.New("invitation").Parse(
	`Hello {{.Name}},

You have been invited to join the classroom "{{.Classroom}}".
Sign in to accept the invitation and start studying.
`))

type (
	Repository interface {
		CreateClassroom(ctx context.Context, cls Classroom) (Classroom, error)
		GetClassroomByID(ctx context.Context, id string) (Classroom, error)
		// GetClassroomForUpdate locks the classroom row until the surrounding transaction ends.
		GetClassroomForUpdate(ctx context.Context, id string) (Classroom, error)
		QueryClassrooms(ctx context.Context, includeArchived bool) ([]Classroom, error)
		QueryClassroomsForTeacher(ctx context.Context, teacherID string) ([]Classroom, error)
		// QueryClassroomsForStudent excludes classrooms the student was removed from.
		QueryClassroomsForStudent(ctx context.Context, studentID string) ([]Classroom, error)
		UpdateClassroom(ctx context.Context, cls Classroom) (Classroom, error)
		// DeleteClassroom cascades to subjects, memberships, preferences, chats, progress and documents.
		DeleteClassroom(ctx context.Context, id string) error

		AddTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, classroomID, teacherID string) (Teacher, error)
		RemoveTeacher(ctx context.Context, classroomID, teacherID string) error
		QueryTeachers(ctx context.Context, classroomID string) ([]Teacher, error)

		AddStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, classroomID, studentID string) (Student, error)
		// UpdateStudentStatus sets the status only if the current one is in fromStatuses,
		// ErrMembershipNotFound is returned otherwise.
		UpdateStudentStatus(ctx context.Context, classroomID, studentID string, status StudentStatus, fromStatuses ...StudentStatus) (Student, error)
		// QueryStudents lists students by join date; all statuses when none is given.
		QueryStudents(ctx context.Context, classroomID string, statuses ...StudentStatus) ([]Student, error)

		AddDocument(ctx context.Context, doc Document) (Document, error)
		GetDocument(ctx context.Context, id string) (Document, error)
		QueryDocuments(ctx context.Context, classroomID string) ([]Document, error)
		DeleteDocument(ctx context.Context, id string) error
	}

	Service struct {
		repo      Repository
		users     user.Repository
		tx        core.Transactor
		validator *core.Validator
		mail      core.EmailService
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	users user.Repository,
	tx core.Transactor,
	validator *core.Validator,
	mail core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, users: users, tx: tx, validator: validator, mail: mail, logger: logger}
}

// Create creates a classroom and assigns its creator as owner teacher, atomically.
func (svc *Service) Create(ctx context.Context, nc NewClassroom, creatorID string) (Classroom, error) {
	if err := nc.Validate(svc.validator); err != nil {
		return Classroom{}, err
	}
	creator, err := svc.users.GetUserByID(ctx, creatorID)
	if err != nil {
		return Classroom{}, err
	}
	if !creator.IsTeacher() {
		return Classroom{}, core.NewFieldError("created_by", "classrooms can only be created by teachers or admins")
	}

	now := core.NowFunc()
	cls := Classroom{
		ID:          uuid.New().String(),
		Name:        nc.Name,
		Description: nc.Description,
		ThemeName:   nc.ThemeName,
		ThemeConfig: nc.ThemeConfig,
		CreatedBy:   creator.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cls.ThemeConfig == nil {
		cls.ThemeConfig = []byte("{}")
	}

	err = svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if cls, err = svc.repo.CreateClassroom(ctx, cls); err != nil {
			return err
		}
		_, err = svc.repo.AddTeacher(ctx, Teacher{
			ClassroomID: cls.ID,
			TeacherID:   creator.ID,
			AddedAt:     now,
			RoleLabel:   OwnerRoleLabel,
		})
		return err
	})
	if err != nil {
		return Classroom{}, err
	}
	return cls, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Classroom, error) {
	return svc.repo.GetClassroomByID(ctx, id)
}

// List returns classrooms ordered by name.
func (svc *Service) List(ctx context.Context, includeArchived bool) ([]Classroom, error) {
	return svc.repo.QueryClassrooms(ctx, includeArchived)
}

func (svc *Service) ListForTeacher(ctx context.Context, teacherID string) ([]Classroom, error) {
	return svc.repo.QueryClassroomsForTeacher(ctx, teacherID)
}

func (svc *Service) ListForStudent(ctx context.Context, studentID string) ([]Classroom, error) {
	return svc.repo.QueryClassroomsForStudent(ctx, studentID)
}

// Update applies uc to the classroom. Once the theme is locked its name and config are frozen,
// and the lock itself cannot be released.
func (svc *Service) Update(ctx context.Context, id string, uc UpdateClassroom) (Classroom, error) {
	if err := uc.Validate(svc.validator); err != nil {
		return Classroom{}, err
	}

	var cls Classroom
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if cls, err = svc.repo.GetClassroomForUpdate(ctx, id); err != nil {
			return err
		}
		if cls.ThemeLocked {
			if uc.ThemeLocked != nil && !*uc.ThemeLocked {
				return ErrThemeUnlock
			}
			if uc.changesTheme(cls) {
				return ErrThemeLocked
			}
		}
		wasLocked := cls.ThemeLocked
		uc.apply(&cls)
		cls.UpdatedAt = core.NowFunc()
		if cls, err = svc.repo.UpdateClassroom(ctx, cls); err != nil {
			return err
		}
		if !wasLocked && cls.ThemeLocked {
			svc.logger.Info("classroom theme locked", map[string]interface{}{"classroom_id": cls.ID})
		}
		return nil
	})
	if err != nil {
		return Classroom{}, err
	}
	return cls, nil
}

// SetThemeConfig replaces the theme config, subject to the theme lock.
func (svc *Service) SetThemeConfig(ctx context.Context, id string, config []byte) (Classroom, error) {
	if !core.IsJSONObject(config) {
		return Classroom{}, core.NewFieldError("theme_config", "must be a JSON object")
	}
	return svc.Update(ctx, id, UpdateClassroom{ThemeConfig: config})
}

// LockTheme freezes the classroom theme. Locking an already locked theme is a no-op.
func (svc *Service) LockTheme(ctx context.Context, id string) (Classroom, error) {
	locked := true
	return svc.Update(ctx, id, UpdateClassroom{ThemeLocked: &locked})
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteClassroom(ctx, id); err != nil {
		return err
	}
	svc.logger.Info("classroom deleted", map[string]interface{}{"classroom_id": id})
	return nil
}

// Teachers

func (svc *Service) AddTeacher(ctx context.Context, classroomID string, nt NewTeacher) (Teacher, error) {
	nt.TeacherID = core.CleanString(nt.TeacherID)
	nt.RoleLabel = core.CleanString(nt.RoleLabel)
	if err := svc.validator.Struct(nt); err != nil {
		return Teacher{}, err
	}
	usr, err := svc.users.GetUserByID(ctx, nt.TeacherID)
	if err != nil {
		return Teacher{}, err
	}
	if !usr.IsTeacher() {
		return Teacher{}, ErrNotTeacher
	}
	return svc.repo.AddTeacher(ctx, Teacher{
		ClassroomID: classroomID,
		TeacherID:   usr.ID,
		AddedAt:     core.NowFunc(),
		RoleLabel:   nt.RoleLabel,
	})
}

// RemoveTeacher deletes the teacher membership; NotAMemberError if there is none.
func (svc *Service) RemoveTeacher(ctx context.Context, classroomID, teacherID string) error {
	err := svc.repo.RemoveTeacher(ctx, classroomID, teacherID)
	if errors.Cause(err) == ErrMembershipNotFound {
		return core.NewNotAMemberError(classroomID, teacherID)
	}
	return err
}

// Students

// AddStudent enrolls a student as invited or active. The pair is unique for good:
// re-enrolling a removed student is a conflict.
func (svc *Service) AddStudent(ctx context.Context, classroomID string, ns NewStudent) (Student, error) {
	ns.StudentID = core.CleanString(ns.StudentID)
	if ns.Status == "" {
		ns.Status = StatusActive
	}
	if err := svc.validator.Struct(ns); err != nil {
		return Student{}, err
	}
	if !ns.Status.IsMember() {
		return Student{}, ErrBadEnrollStatus
	}

	cls, err := svc.repo.GetClassroomByID(ctx, classroomID)
	if err != nil {
		return Student{}, err
	}
	usr, err := svc.users.GetUserByID(ctx, ns.StudentID)
	if err != nil {
		return Student{}, err
	}
	if !usr.IsStudent() {
		return Student{}, ErrNotStudent
	}

	std, err := svc.repo.AddStudent(ctx, Student{
		ClassroomID: cls.ID,
		StudentID:   usr.ID,
		Status:      ns.Status,
		JoinedAt:    core.NowFunc(),
	})
	if err != nil {
		return Student{}, err
	}
	if std.Status == StatusInvited {
		svc.sendInvitation(cls, usr)
	}
	return std, nil
}

func (svc *Service) sendInvitation(cls Classroom, usr user.User) {
	if svc.mail == nil {
		return
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Invitation to " + cls.Name,
		TextTemplate: invitationTmpl,
		TemplateData: map[string]string{"Name": usr.Name, "Classroom": cls.Name},
	})
}

// SetStudentStatus moves a student along invited -> active -> removed.
func (svc *Service) SetStudentStatus(ctx context.Context, classroomID, studentID string, status StudentStatus) (Student, error) {
	if !status.IsValid() {
		return Student{}, core.NewFieldError("status", studentStatusText)
	}
	std, err := svc.repo.GetStudent(ctx, classroomID, studentID)
	if err != nil {
		if errors.Cause(err) == ErrMembershipNotFound {
			return Student{}, core.NewNotAMemberError(classroomID, studentID)
		}
		return Student{}, err
	}
	if !std.Status.CanTransitionTo(status) {
		return Student{}, core.NewFieldError("status", "cannot change status from "+string(std.Status)+" to "+string(status))
	}

	std, err = svc.repo.UpdateStudentStatus(ctx, classroomID, studentID, status, std.Status)
	if errors.Cause(err) == ErrMembershipNotFound {
		return Student{}, errStatusRace
	}
	return std, err
}

// RemoveStudent tombstones an invited or active student.
// Any other case (unknown user, already removed) is a NotAMemberError and leaves the roster unchanged.
func (svc *Service) RemoveStudent(ctx context.Context, classroomID, studentID string) error {
	_, err := svc.repo.UpdateStudentStatus(ctx, classroomID, studentID, StatusRemoved, MemberStatuses...)
	if err != nil {
		if errors.Cause(err) == ErrMembershipNotFound {
			return core.NewNotAMemberError(classroomID, studentID)
		}
		return errors.Wrap(err, "removing student")
	}
	svc.logger.Info("student removed", map[string]interface{}{"classroom_id": classroomID, "student_id": studentID})
	return nil
}

// Roster returns teachers and students of every status.
func (svc *Service) Roster(ctx context.Context, classroomID string) (Roster, error) {
	return svc.roster(ctx, classroomID)
}

// ActiveRoster returns teachers and the students that were not removed.
func (svc *Service) ActiveRoster(ctx context.Context, classroomID string) (Roster, error) {
	return svc.roster(ctx, classroomID, MemberStatuses...)
}

func (svc *Service) roster(ctx context.Context, classroomID string, statuses ...StudentStatus) (Roster, error) {
	if _, err := svc.repo.GetClassroomByID(ctx, classroomID); err != nil {
		return Roster{}, err
	}
	teachers, err := svc.repo.QueryTeachers(ctx, classroomID)
	if err != nil {
		return Roster{}, err
	}
	students, err := svc.repo.QueryStudents(ctx, classroomID, statuses...)
	if err != nil {
		return Roster{}, err
	}
	return Roster{Teachers: teachers, Students: students}, nil
}

// IsTeacherOf reports whether the user teaches the classroom.
func (svc *Service) IsTeacherOf(ctx context.Context, classroomID, userID string) (bool, error) {
	_, err := svc.repo.GetTeacher(ctx, classroomID, userID)
	switch {
	case errors.Cause(err) == ErrMembershipNotFound:
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// IsStudentOf reports whether the user is an active student of the classroom.
func (svc *Service) IsStudentOf(ctx context.Context, classroomID, userID string) (bool, error) {
	std, err := svc.repo.GetStudent(ctx, classroomID, userID)
	switch {
	case errors.Cause(err) == ErrMembershipNotFound:
		return false, nil
	case err != nil:
		return false, err
	}
	return std.Status == StatusActive, nil
}
