package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx/types"
	"github.com/volatiletech/null/v8"

	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/user"
)

var (
	classroomColumns = []string{
		"id", "name", "description", "theme_name", "theme_config", "theme_locked",
		"created_by", "is_archived", "created_at", "updated_at",
	}
	teacherColumns  = []string{"classroom_id", "teacher_id", "added_at", "role_label"}
	studentColumns  = []string{"classroom_id", "student_id", "status", "joined_at"}
	documentColumns = []string{
		"id", "classroom_id", "name", "storage_bucket", "storage_path", "content_type",
		"file_size", "uploaded_by", "created_at", "updated_at",
	}
)

type (
	classroomRow struct {
		ID          string         `db:"id"`
		Name        string         `db:"name"`
		Description string         `db:"description"`
		ThemeName   string         `db:"theme_name"`
		ThemeConfig types.JSONText `db:"theme_config"`
		ThemeLocked bool           `db:"theme_locked"`
		CreatedBy   string         `db:"created_by"`
		IsArchived  bool           `db:"is_archived"`
		CreatedAt   time.Time      `db:"created_at"`
		UpdatedAt   time.Time      `db:"updated_at"`
	}

	teacherRow struct {
		ClassroomID string      `db:"classroom_id"`
		TeacherID   string      `db:"teacher_id"`
		AddedAt     time.Time   `db:"added_at"`
		RoleLabel   null.String `db:"role_label"`
	}

	studentRow struct {
		ClassroomID string    `db:"classroom_id"`
		StudentID   string    `db:"student_id"`
		Status      string    `db:"status"`
		JoinedAt    time.Time `db:"joined_at"`
	}

	documentRow struct {
		ID            string      `db:"id"`
		ClassroomID   string      `db:"classroom_id"`
		Name          string      `db:"name"`
		StorageBucket string      `db:"storage_bucket"`
		StoragePath   string      `db:"storage_path"`
		ContentType   null.String `db:"content_type"`
		FileSize      int64       `db:"file_size"`
		UploadedBy    string      `db:"uploaded_by"`
		CreatedAt     time.Time   `db:"created_at"`
		UpdatedAt     time.Time   `db:"updated_at"`
	}
)

func newClassroomRow(cls classroom.Classroom) classroomRow {
	cfg := types.JSONText(cls.ThemeConfig)
	if len(cfg) == 0 {
		cfg = types.JSONText("{}")
	}
	return classroomRow{
		ID:          cls.ID,
		Name:        cls.Name,
		Description: cls.Description,
		ThemeName:   cls.ThemeName,
		ThemeConfig: cfg,
		ThemeLocked: cls.ThemeLocked,
		CreatedBy:   cls.CreatedBy,
		IsArchived:  cls.IsArchived,
		CreatedAt:   cls.CreatedAt.UTC(),
		UpdatedAt:   cls.UpdatedAt.UTC(),
	}
}

func (r classroomRow) toClassroom() classroom.Classroom {
	return classroom.Classroom{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		ThemeName:   r.ThemeName,
		ThemeConfig: []byte(r.ThemeConfig),
		ThemeLocked: r.ThemeLocked,
		CreatedBy:   r.CreatedBy,
		IsArchived:  r.IsArchived,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r teacherRow) toTeacher() classroom.Teacher {
	return classroom.Teacher{
		ClassroomID: r.ClassroomID,
		TeacherID:   r.TeacherID,
		AddedAt:     r.AddedAt.UTC(),
		RoleLabel:   r.RoleLabel.String,
	}
}

func (r studentRow) toStudent() classroom.Student {
	return classroom.Student{
		ClassroomID: r.ClassroomID,
		StudentID:   r.StudentID,
		Status:      classroom.StudentStatus(r.Status),
		JoinedAt:    r.JoinedAt.UTC(),
	}
}

func (r documentRow) toDocument() classroom.Document {
	return classroom.Document{
		ID:            r.ID,
		ClassroomID:   r.ClassroomID,
		Name:          r.Name,
		StorageBucket: r.StorageBucket,
		StoragePath:   r.StoragePath,
		ContentType:   r.ContentType.String,
		FileSize:      r.FileSize,
		UploadedBy:    r.UploadedBy,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

// prefixed qualifies columns with a table alias.
func prefixed(alias string, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, alias+"."+c)
	}
	return out
}

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{db: db}
}

func (repo classroomRepository) CreateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	const q = `INSERT INTO classrooms (id, name, description, theme_name, theme_config, theme_locked, created_by, is_archived, created_at, updated_at)
		VALUES (:id, :name, :description, :theme_name, :theme_config, :theme_locked, :created_by, :is_archived, :created_at, :updated_at)`
	row := newClassroomRow(cls)
	if err := repo.db.namedExec(ctx, q, row); err != nil {
		return classroom.Classroom{}, translate(err, "inserting classroom")
	}
	return row.toClassroom(), nil
}

func (repo classroomRepository) getClassroom(ctx context.Context, id string, forUpdate bool) (classroom.Classroom, error) {
	if !isUUID(id) {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	q := psql.Select(classroomColumns...).From("classrooms").Where(sq.Eq{"id": id})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	var row classroomRow
	if err := repo.db.get(ctx, &row, q); err != nil {
		return classroom.Classroom{}, trapNoRows(err, "finding classroom", classroom.ErrNotFound)
	}
	return row.toClassroom(), nil
}

func (repo classroomRepository) GetClassroomByID(ctx context.Context, id string) (classroom.Classroom, error) {
	return repo.getClassroom(ctx, id, false)
}

func (repo classroomRepository) GetClassroomForUpdate(ctx context.Context, id string) (classroom.Classroom, error) {
	return repo.getClassroom(ctx, id, true)
}

func (repo classroomRepository) queryClassrooms(ctx context.Context, q sq.SelectBuilder) ([]classroom.Classroom, error) {
	var rows []classroomRow
	if err := repo.db.sel(ctx, &rows, q.OrderBy("lower(c.name)", "c.created_at")); err != nil {
		return nil, translate(err, "querying classrooms")
	}
	classrooms := make([]classroom.Classroom, 0, len(rows))
	for _, r := range rows {
		classrooms = append(classrooms, r.toClassroom())
	}
	return classrooms, nil
}

func (repo classroomRepository) QueryClassrooms(ctx context.Context, includeArchived bool) ([]classroom.Classroom, error) {
	q := psql.Select(prefixed("c", classroomColumns)...).From("classrooms c")
	if !includeArchived {
		q = q.Where(sq.Eq{"c.is_archived": false})
	}
	return repo.queryClassrooms(ctx, q)
}

func (repo classroomRepository) QueryClassroomsForTeacher(ctx context.Context, teacherID string) ([]classroom.Classroom, error) {
	if !isUUID(teacherID) {
		return []classroom.Classroom{}, nil
	}
	q := psql.Select(prefixed("c", classroomColumns)...).
		From("classrooms c").
		Join("classroom_teachers t ON t.classroom_id = c.id").
		Where(sq.Eq{"t.teacher_id": teacherID})
	return repo.queryClassrooms(ctx, q)
}

func (repo classroomRepository) QueryClassroomsForStudent(ctx context.Context, studentID string) ([]classroom.Classroom, error) {
	if !isUUID(studentID) {
		return []classroom.Classroom{}, nil
	}
	q := psql.Select(prefixed("c", classroomColumns)...).
		From("classrooms c").
		Join("classroom_students s ON s.classroom_id = c.id").
		Where(sq.Eq{"s.student_id": studentID, "s.status": statusStrings(classroom.MemberStatuses)})
	return repo.queryClassrooms(ctx, q)
}

func (repo classroomRepository) UpdateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	if !isUUID(cls.ID) {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	row := newClassroomRow(cls)
	q := psql.Update("classrooms").
		SetMap(map[string]interface{}{
			"name":         row.Name,
			"description":  row.Description,
			"theme_name":   row.ThemeName,
			"theme_config": row.ThemeConfig,
			"theme_locked": row.ThemeLocked,
			"is_archived":  row.IsArchived,
			"updated_at":   row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID})
	n, err := repo.db.exec(ctx, q)
	if err != nil {
		return classroom.Classroom{}, translate(err, "updating classroom")
	}
	if n == 0 {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	return repo.GetClassroomByID(ctx, cls.ID)
}

func (repo classroomRepository) DeleteClassroom(ctx context.Context, id string) error {
	if !isUUID(id) {
		return classroom.ErrNotFound
	}
	n, err := repo.db.exec(ctx, psql.Delete("classrooms").Where(sq.Eq{"id": id}))
	if err != nil {
		return translate(err, "deleting classroom")
	}
	if n == 0 {
		return classroom.ErrNotFound
	}
	return nil
}

// Teachers

func (repo classroomRepository) AddTeacher(ctx context.Context, t classroom.Teacher) (classroom.Teacher, error) {
	if !isUUID(t.ClassroomID) {
		return classroom.Teacher{}, classroom.ErrNotFound
	}
	if !isUUID(t.TeacherID) {
		return classroom.Teacher{}, user.ErrNotFound
	}
	q := psql.Insert("classroom_teachers").
		Columns(teacherColumns...).
		Values(t.ClassroomID, t.TeacherID, t.AddedAt.UTC(), null.NewString(t.RoleLabel, t.RoleLabel != ""))
	if _, err := repo.db.exec(ctx, q); err != nil {
		return classroom.Teacher{}, translate(err, "inserting classroom teacher")
	}
	return t, nil
}

func (repo classroomRepository) GetTeacher(ctx context.Context, classroomID, teacherID string) (classroom.Teacher, error) {
	if !isUUID(classroomID) || !isUUID(teacherID) {
		return classroom.Teacher{}, classroom.ErrMembershipNotFound
	}
	var row teacherRow
	q := psql.Select(teacherColumns...).
		From("classroom_teachers").
		Where(sq.Eq{"classroom_id": classroomID, "teacher_id": teacherID})
	if err := repo.db.get(ctx, &row, q); err != nil {
		return classroom.Teacher{}, trapNoRows(err, "finding classroom teacher", classroom.ErrMembershipNotFound)
	}
	return row.toTeacher(), nil
}

func (repo classroomRepository) RemoveTeacher(ctx context.Context, classroomID, teacherID string) error {
	if !isUUID(classroomID) || !isUUID(teacherID) {
		return classroom.ErrMembershipNotFound
	}
	q := psql.Delete("classroom_teachers").Where(sq.Eq{"classroom_id": classroomID, "teacher_id": teacherID})
	n, err := repo.db.exec(ctx, q)
	if err != nil {
		return translate(err, "deleting classroom teacher")
	}
	if n == 0 {
		return classroom.ErrMembershipNotFound
	}
	return nil
}

func (repo classroomRepository) QueryTeachers(ctx context.Context, classroomID string) ([]classroom.Teacher, error) {
	teachers := make([]classroom.Teacher, 0)
	if !isUUID(classroomID) {
		return teachers, nil
	}
	var rows []teacherRow
	q := psql.Select(teacherColumns...).
		From("classroom_teachers").
		Where(sq.Eq{"classroom_id": classroomID}).
		OrderBy("added_at", "teacher_id")
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying classroom teachers")
	}
	for _, r := range rows {
		teachers = append(teachers, r.toTeacher())
	}
	return teachers, nil
}

// Students

func (repo classroomRepository) AddStudent(ctx context.Context, s classroom.Student) (classroom.Student, error) {
	if !isUUID(s.ClassroomID) {
		return classroom.Student{}, classroom.ErrNotFound
	}
	if !isUUID(s.StudentID) {
		return classroom.Student{}, user.ErrNotFound
	}
	q := psql.Insert("classroom_students").
		Columns(studentColumns...).
		Values(s.ClassroomID, s.StudentID, string(s.Status), s.JoinedAt.UTC())
	if _, err := repo.db.exec(ctx, q); err != nil {
		return classroom.Student{}, translate(err, "inserting classroom student")
	}
	return s, nil
}

func (repo classroomRepository) GetStudent(ctx context.Context, classroomID, studentID string) (classroom.Student, error) {
	if !isUUID(classroomID) || !isUUID(studentID) {
		return classroom.Student{}, classroom.ErrMembershipNotFound
	}
	var row studentRow
	q := psql.Select(studentColumns...).
		From("classroom_students").
		Where(sq.Eq{"classroom_id": classroomID, "student_id": studentID})
	if err := repo.db.get(ctx, &row, q); err != nil {
		return classroom.Student{}, trapNoRows(err, "finding classroom student", classroom.ErrMembershipNotFound)
	}
	return row.toStudent(), nil
}

func (repo classroomRepository) UpdateStudentStatus(
	ctx context.Context,
	classroomID, studentID string,
	status classroom.StudentStatus,
	fromStatuses ...classroom.StudentStatus,
) (classroom.Student, error) {
	if !isUUID(classroomID) || !isUUID(studentID) {
		return classroom.Student{}, classroom.ErrMembershipNotFound
	}
	q := psql.Update("classroom_students").
		Set("status", string(status)).
		Where(sq.Eq{"classroom_id": classroomID, "student_id": studentID}).
		Suffix("RETURNING " + strings.Join(studentColumns, ", "))
	if len(fromStatuses) > 0 {
		q = q.Where(sq.Eq{"status": statusStrings(fromStatuses)})
	}
	var row studentRow
	if err := repo.db.get(ctx, &row, q); err != nil {
		return classroom.Student{}, trapNoRows(err, "updating classroom student status", classroom.ErrMembershipNotFound)
	}
	return row.toStudent(), nil
}

func (repo classroomRepository) QueryStudents(ctx context.Context, classroomID string, statuses ...classroom.StudentStatus) ([]classroom.Student, error) {
	students := make([]classroom.Student, 0)
	if !isUUID(classroomID) {
		return students, nil
	}
	q := psql.Select(studentColumns...).
		From("classroom_students").
		Where(sq.Eq{"classroom_id": classroomID}).
		OrderBy("joined_at", "student_id")
	if len(statuses) > 0 {
		q = q.Where(sq.Eq{"status": statusStrings(statuses)})
	}
	var rows []studentRow
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying classroom students")
	}
	for _, r := range rows {
		students = append(students, r.toStudent())
	}
	return students, nil
}

func statusStrings(statuses []classroom.StudentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// Documents

func (repo classroomRepository) AddDocument(ctx context.Context, doc classroom.Document) (classroom.Document, error) {
	if !isUUID(doc.ClassroomID) {
		return classroom.Document{}, classroom.ErrNotFound
	}
	q := psql.Insert("classroom_documents").
		Columns(documentColumns...).
		Values(
			doc.ID, doc.ClassroomID, doc.Name, doc.StorageBucket, doc.StoragePath,
			null.NewString(doc.ContentType, doc.ContentType != ""), doc.FileSize, doc.UploadedBy,
			doc.CreatedAt.UTC(), doc.UpdatedAt.UTC(),
		)
	if _, err := repo.db.exec(ctx, q); err != nil {
		return classroom.Document{}, translate(err, "inserting classroom document")
	}
	return doc, nil
}

func (repo classroomRepository) GetDocument(ctx context.Context, id string) (classroom.Document, error) {
	if !isUUID(id) {
		return classroom.Document{}, classroom.ErrDocumentNotFound
	}
	var row documentRow
	q := psql.Select(documentColumns...).From("classroom_documents").Where(sq.Eq{"id": id})
	if err := repo.db.get(ctx, &row, q); err != nil {
		return classroom.Document{}, trapNoRows(err, "finding classroom document", classroom.ErrDocumentNotFound)
	}
	return row.toDocument(), nil
}

func (repo classroomRepository) QueryDocuments(ctx context.Context, classroomID string) ([]classroom.Document, error) {
	docs := make([]classroom.Document, 0)
	if !isUUID(classroomID) {
		return docs, nil
	}
	var rows []documentRow
	q := psql.Select(documentColumns...).
		From("classroom_documents").
		Where(sq.Eq{"classroom_id": classroomID}).
		OrderBy("lower(name)", "created_at")
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying classroom documents")
	}
	for _, r := range rows {
		docs = append(docs, r.toDocument())
	}
	return docs, nil
}

func (repo classroomRepository) DeleteDocument(ctx context.Context, id string) error {
	if !isUUID(id) {
		return classroom.ErrDocumentNotFound
	}
	n, err := repo.db.exec(ctx, psql.Delete("classroom_documents").Where(sq.Eq{"id": id}))
	if err != nil {
		return translate(err, "deleting classroom document")
	}
	if n == 0 {
		return classroom.ErrDocumentNotFound
	}
	return nil
}
