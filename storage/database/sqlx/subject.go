package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
)

var (
	subjectColumns    = []string{"id", "classroom_id", "name", "is_active", "created_by", "created_at"}
	preferenceColumns = []string{"id", "student_id", "classroom_id", "subject_id", "free_text", "priority", "created_at"}
)

type (
	subjectRow struct {
		ID          string    `db:"id"`
		ClassroomID string    `db:"classroom_id"`
		Name        string    `db:"name"`
		IsActive    bool      `db:"is_active"`
		CreatedBy   string    `db:"created_by"`
		CreatedAt   time.Time `db:"created_at"`
	}

	preferenceRow struct {
		ID          string      `db:"id"`
		StudentID   string      `db:"student_id"`
		ClassroomID string      `db:"classroom_id"`
		SubjectID   null.String `db:"subject_id"`
		FreeText    null.String `db:"free_text"`
		Priority    int         `db:"priority"`
		CreatedAt   time.Time   `db:"created_at"`
	}
)

func (r subjectRow) toSubject() subject.Subject {
	return subject.Subject{
		ID:          r.ID,
		ClassroomID: r.ClassroomID,
		Name:        r.Name,
		IsActive:    r.IsActive,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (r preferenceRow) toPreference() (subject.Preference, error) {
	ref, err := subject.RefFromColumns(r.SubjectID, r.FreeText)
	if err != nil {
		return subject.Preference{}, err
	}
	return subject.Preference{
		ID:          r.ID,
		StudentID:   r.StudentID,
		ClassroomID: r.ClassroomID,
		Subject:     ref,
		Priority:    r.Priority,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

type subjectRepository struct {
	db *DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *DB) *subjectRepository {
	return &subjectRepository{db: db}
}

func (repo subjectRepository) CreateSubject(ctx context.Context, s subject.Subject) (subject.Subject, error) {
	if !isUUID(s.ClassroomID) {
		return subject.Subject{}, classroom.ErrNotFound
	}
	if !isUUID(s.CreatedBy) {
		return subject.Subject{}, user.ErrNotFound
	}
	q := psql.Insert("classroom_subjects").
		Columns(subjectColumns...).
		Values(s.ID, s.ClassroomID, s.Name, s.IsActive, s.CreatedBy, s.CreatedAt.UTC())
	if _, err := repo.db.exec(ctx, q); err != nil {
		return subject.Subject{}, translate(err, "inserting subject")
	}
	return s, nil
}

func (repo subjectRepository) GetSubjectByID(ctx context.Context, id string) (subject.Subject, error) {
	if !isUUID(id) {
		return subject.Subject{}, subject.ErrNotFound
	}
	var row subjectRow
	q := psql.Select(subjectColumns...).From("classroom_subjects").Where(sq.Eq{"id": id})
	if err := repo.db.get(ctx, &row, q); err != nil {
		return subject.Subject{}, trapNoRows(err, "finding subject", subject.ErrNotFound)
	}
	return row.toSubject(), nil
}

func (repo subjectRepository) QuerySubjects(ctx context.Context, classroomID string, activeOnly bool) ([]subject.Subject, error) {
	subjects := make([]subject.Subject, 0)
	if !isUUID(classroomID) {
		return subjects, nil
	}
	q := psql.Select(subjectColumns...).
		From("classroom_subjects").
		Where(sq.Eq{"classroom_id": classroomID}).
		OrderBy("lower(name)")
	if activeOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}
	var rows []subjectRow
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying subjects")
	}
	for _, r := range rows {
		subjects = append(subjects, r.toSubject())
	}
	return subjects, nil
}

func (repo subjectRepository) SetSubjectActive(ctx context.Context, id string, active bool) (subject.Subject, error) {
	if !isUUID(id) {
		return subject.Subject{}, subject.ErrNotFound
	}
	q := psql.Update("classroom_subjects").
		Set("is_active", active).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(subjectColumns, ", "))
	var row subjectRow
	if err := repo.db.get(ctx, &row, q); err != nil {
		return subject.Subject{}, trapNoRows(err, "updating subject", subject.ErrNotFound)
	}
	return row.toSubject(), nil
}

func (repo subjectRepository) DeleteSubject(ctx context.Context, id string) error {
	if !isUUID(id) {
		return subject.ErrNotFound
	}
	n, err := repo.db.exec(ctx, psql.Delete("classroom_subjects").Where(sq.Eq{"id": id}))
	if err != nil {
		return translateDelete(err, "deleting subject", subject.ErrSubjectInUse)
	}
	if n == 0 {
		return subject.ErrNotFound
	}
	return nil
}

// Preferences

func (repo subjectRepository) CreatePreference(ctx context.Context, p subject.Preference) (subject.Preference, error) {
	if !isUUID(p.ClassroomID) {
		return subject.Preference{}, classroom.ErrNotFound
	}
	if !isUUID(p.StudentID) {
		return subject.Preference{}, user.ErrNotFound
	}
	if p.Subject.IsCatalog() && !isUUID(p.Subject.SubjectID()) {
		return subject.Preference{}, subject.ErrNotFound
	}
	subjectID, freeText := p.Subject.Columns()
	q := psql.Insert("student_subject_preferences").
		Columns(preferenceColumns...).
		Values(p.ID, p.StudentID, p.ClassroomID, subjectID, freeText, p.Priority, p.CreatedAt.UTC())
	if _, err := repo.db.exec(ctx, q); err != nil {
		return subject.Preference{}, translate(err, "inserting subject preference")
	}
	return p, nil
}

func (repo subjectRepository) GetPreferenceByID(ctx context.Context, id string) (subject.Preference, error) {
	if !isUUID(id) {
		return subject.Preference{}, subject.ErrPreferenceNotFound
	}
	var row preferenceRow
	q := psql.Select(preferenceColumns...).From("student_subject_preferences").Where(sq.Eq{"id": id})
	if err := repo.db.get(ctx, &row, q); err != nil {
		return subject.Preference{}, trapNoRows(err, "finding subject preference", subject.ErrPreferenceNotFound)
	}
	return row.toPreference()
}

func (repo subjectRepository) QueryPreferences(ctx context.Context, studentID, classroomID string) ([]subject.Preference, error) {
	prefs := make([]subject.Preference, 0)
	if !isUUID(studentID) || !isUUID(classroomID) {
		return prefs, nil
	}
	var rows []preferenceRow
	q := psql.Select(preferenceColumns...).
		From("student_subject_preferences").
		Where(sq.Eq{"student_id": studentID, "classroom_id": classroomID}).
		OrderBy("priority", "created_at")
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying subject preferences")
	}
	for _, r := range rows {
		p, err := r.toPreference()
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, nil
}

func (repo subjectRepository) DeletePreference(ctx context.Context, id string) error {
	if !isUUID(id) {
		return subject.ErrPreferenceNotFound
	}
	n, err := repo.db.exec(ctx, psql.Delete("student_subject_preferences").Where(sq.Eq{"id": id}))
	if err != nil {
		return translate(err, "deleting subject preference")
	}
	if n == 0 {
		return subject.ErrPreferenceNotFound
	}
	return nil
}

func (repo subjectRepository) DeletePreferences(ctx context.Context, studentID, classroomID string) error {
	if !isUUID(studentID) || !isUUID(classroomID) {
		return nil
	}
	q := psql.Delete("student_subject_preferences").Where(sq.Eq{"student_id": studentID, "classroom_id": classroomID})
	if _, err := repo.db.exec(ctx, q); err != nil {
		return translate(err, "deleting subject preferences")
	}
	return nil
}
