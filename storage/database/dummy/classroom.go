package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/user"
)

var errStudentStatus = core.NewFieldError("status", "invalid student status")

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{db: db}
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	if t.userIdx(cls.CreatedBy) < 0 {
		return classroom.Classroom{}, user.ErrNotFound
	}
	if len(cls.ThemeConfig) == 0 {
		cls.ThemeConfig = []byte("{}")
	}
	cls.CreatedAt = cls.CreatedAt.UTC()
	cls.UpdatedAt = cls.UpdatedAt.UTC()
	t.classrooms = append(t.classrooms, cls)
	return cls, nil
}

func (repo *classroomRepository) GetClassroomByID(ctx context.Context, id string) (classroom.Classroom, error) {
	defer repo.db.lock(ctx)()
	if i := repo.db.t.classroomIdx(id); i >= 0 {
		return repo.db.t.classrooms[i], nil
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

// GetClassroomForUpdate needs no row lock: transactions hold the whole store.
func (repo *classroomRepository) GetClassroomForUpdate(ctx context.Context, id string) (classroom.Classroom, error) {
	return repo.GetClassroomByID(ctx, id)
}

func (repo *classroomRepository) query(filter func(c classroom.Classroom) bool) []classroom.Classroom {
	classrooms := make([]classroom.Classroom, 0)
	for _, c := range repo.db.t.classrooms {
		if filter(c) {
			classrooms = append(classrooms, c)
		}
	}
	sort.SliceStable(classrooms, func(i, j int) bool {
		ni, nj := strings.ToLower(classrooms[i].Name), strings.ToLower(classrooms[j].Name)
		if ni != nj {
			return ni < nj
		}
		return classrooms[i].CreatedAt.Before(classrooms[j].CreatedAt)
	})
	return classrooms
}

func (repo *classroomRepository) QueryClassrooms(ctx context.Context, includeArchived bool) ([]classroom.Classroom, error) {
	defer repo.db.lock(ctx)()
	return repo.query(func(c classroom.Classroom) bool { return includeArchived || !c.IsArchived }), nil
}

func (repo *classroomRepository) QueryClassroomsForTeacher(ctx context.Context, teacherID string) ([]classroom.Classroom, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t
	return repo.query(func(c classroom.Classroom) bool { return t.teacherIdx(c.ID, teacherID) >= 0 }), nil
}

func (repo *classroomRepository) QueryClassroomsForStudent(ctx context.Context, studentID string) ([]classroom.Classroom, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t
	return repo.query(func(c classroom.Classroom) bool {
		i := t.studentIdx(c.ID, studentID)
		return i >= 0 && t.students[i].Status.IsMember()
	}), nil
}

func (repo *classroomRepository) UpdateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	i := t.classroomIdx(cls.ID)
	if i < 0 {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	orig := &t.classrooms[i]
	orig.Name = cls.Name
	orig.Description = cls.Description
	orig.ThemeName = cls.ThemeName
	orig.ThemeConfig = cls.ThemeConfig
	if len(orig.ThemeConfig) == 0 {
		orig.ThemeConfig = []byte("{}")
	}
	orig.ThemeLocked = cls.ThemeLocked
	orig.IsArchived = cls.IsArchived
	orig.UpdatedAt = cls.UpdatedAt.UTC()
	return *orig, nil
}

func (repo *classroomRepository) DeleteClassroom(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	if t.classroomIdx(id) < 0 {
		return classroom.ErrNotFound
	}
	// work on a copy so that a blocked cascade leaves nothing half deleted
	work := t.clone()
	if err := work.deleteClassroom(id); err != nil {
		return err
	}
	*t = *work
	return nil
}

// Teachers

func (repo *classroomRepository) AddTeacher(ctx context.Context, m classroom.Teacher) (classroom.Teacher, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	switch {
	case t.teacherIdx(m.ClassroomID, m.TeacherID) >= 0:
		return classroom.Teacher{}, classroom.ErrTeacherExists
	case t.classroomIdx(m.ClassroomID) < 0:
		return classroom.Teacher{}, classroom.ErrNotFound
	case t.userIdx(m.TeacherID) < 0:
		return classroom.Teacher{}, user.ErrNotFound
	}
	m.AddedAt = m.AddedAt.UTC()
	t.teachers = append(t.teachers, m)
	return m, nil
}

func (repo *classroomRepository) GetTeacher(ctx context.Context, classroomID, teacherID string) (classroom.Teacher, error) {
	defer repo.db.lock(ctx)()
	if i := repo.db.t.teacherIdx(classroomID, teacherID); i >= 0 {
		return repo.db.t.teachers[i], nil
	}
	return classroom.Teacher{}, classroom.ErrMembershipNotFound
}

func (repo *classroomRepository) RemoveTeacher(ctx context.Context, classroomID, teacherID string) error {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	i := t.teacherIdx(classroomID, teacherID)
	if i < 0 {
		return classroom.ErrMembershipNotFound
	}
	t.teachers = append(t.teachers[:i:i], t.teachers[i+1:]...)
	return nil
}

func (repo *classroomRepository) QueryTeachers(ctx context.Context, classroomID string) ([]classroom.Teacher, error) {
	defer repo.db.lock(ctx)()
	teachers := make([]classroom.Teacher, 0)
	for _, m := range repo.db.t.teachers {
		if m.ClassroomID == classroomID {
			teachers = append(teachers, m)
		}
	}
	sort.SliceStable(teachers, func(i, j int) bool { return teachers[i].AddedAt.Before(teachers[j].AddedAt) })
	return teachers, nil
}

// Students

func (repo *classroomRepository) AddStudent(ctx context.Context, m classroom.Student) (classroom.Student, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	switch {
	case t.studentIdx(m.ClassroomID, m.StudentID) >= 0:
		return classroom.Student{}, classroom.ErrStudentExists
	case !m.Status.IsValid():
		return classroom.Student{}, errStudentStatus
	case t.classroomIdx(m.ClassroomID) < 0:
		return classroom.Student{}, classroom.ErrNotFound
	case t.userIdx(m.StudentID) < 0:
		return classroom.Student{}, user.ErrNotFound
	}
	m.JoinedAt = m.JoinedAt.UTC()
	t.students = append(t.students, m)
	return m, nil
}

func (repo *classroomRepository) GetStudent(ctx context.Context, classroomID, studentID string) (classroom.Student, error) {
	defer repo.db.lock(ctx)()
	if i := repo.db.t.studentIdx(classroomID, studentID); i >= 0 {
		return repo.db.t.students[i], nil
	}
	return classroom.Student{}, classroom.ErrMembershipNotFound
}

func (repo *classroomRepository) UpdateStudentStatus(
	ctx context.Context,
	classroomID, studentID string,
	status classroom.StudentStatus,
	fromStatuses ...classroom.StudentStatus,
) (classroom.Student, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	i := t.studentIdx(classroomID, studentID)
	if i < 0 || (len(fromStatuses) > 0 && !hasStatus(fromStatuses, t.students[i].Status)) {
		return classroom.Student{}, classroom.ErrMembershipNotFound
	}
	if !status.IsValid() {
		return classroom.Student{}, errStudentStatus
	}
	t.students[i].Status = status
	return t.students[i], nil
}

func (repo *classroomRepository) QueryStudents(ctx context.Context, classroomID string, statuses ...classroom.StudentStatus) ([]classroom.Student, error) {
	defer repo.db.lock(ctx)()
	students := make([]classroom.Student, 0)
	for _, m := range repo.db.t.students {
		if m.ClassroomID == classroomID && (len(statuses) == 0 || hasStatus(statuses, m.Status)) {
			students = append(students, m)
		}
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].JoinedAt.Before(students[j].JoinedAt) })
	return students, nil
}

func hasStatus(statuses []classroom.StudentStatus, s classroom.StudentStatus) bool {
	for _, status := range statuses {
		if status == s {
			return true
		}
	}
	return false
}

// Documents

func (repo *classroomRepository) AddDocument(ctx context.Context, doc classroom.Document) (classroom.Document, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	if t.classroomIdx(doc.ClassroomID) < 0 {
		return classroom.Document{}, classroom.ErrNotFound
	}
	if t.userIdx(doc.UploadedBy) < 0 {
		return classroom.Document{}, user.ErrNotFound
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	t.documents = append(t.documents, doc)
	return doc, nil
}

func (repo *classroomRepository) GetDocument(ctx context.Context, id string) (classroom.Document, error) {
	defer repo.db.lock(ctx)()
	for _, d := range repo.db.t.documents {
		if d.ID == id {
			return d, nil
		}
	}
	return classroom.Document{}, classroom.ErrDocumentNotFound
}

func (repo *classroomRepository) QueryDocuments(ctx context.Context, classroomID string) ([]classroom.Document, error) {
	defer repo.db.lock(ctx)()
	docs := make([]classroom.Document, 0)
	for _, d := range repo.db.t.documents {
		if d.ClassroomID == classroomID {
			docs = append(docs, d)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		ni, nj := strings.ToLower(docs[i].Name), strings.ToLower(docs[j].Name)
		if ni != nj {
			return ni < nj
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

func (repo *classroomRepository) DeleteDocument(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	t := repo.db.t
	for i, d := range t.documents {
		if d.ID == id {
			t.documents = append(t.documents[:i:i], t.documents[i+1:]...)
			return nil
		}
	}
	return classroom.ErrDocumentNotFound
}
