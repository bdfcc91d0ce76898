package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/progress"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
)

var scoreColumns = []string{
	"id", "student_id", "classroom_id", "subject_id", "subject_free_text",
	"topic_source", "metric", "score", "recorded_at",
}

type scoreRow struct {
	ID              string      `db:"id"`
	StudentID       string      `db:"student_id"`
	ClassroomID     string      `db:"classroom_id"`
	SubjectID       null.String `db:"subject_id"`
	SubjectFreeText null.String `db:"subject_free_text"`
	TopicSource     string      `db:"topic_source"`
	Metric          string      `db:"metric"`
	Score           float64     `db:"score"`
	RecordedAt      time.Time   `db:"recorded_at"`
}

func (r scoreRow) toScore() (progress.Score, error) {
	ref, err := subject.RefFromColumns(r.SubjectID, r.SubjectFreeText)
	if err != nil {
		return progress.Score{}, err
	}
	return progress.Score{
		ID:          r.ID,
		StudentID:   r.StudentID,
		ClassroomID: r.ClassroomID,
		Subject:     ref,
		TopicSource: r.TopicSource,
		Metric:      r.Metric,
		Score:       r.Score,
		RecordedAt:  r.RecordedAt.UTC(),
	}, nil
}

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo progressRepository) CreateScore(ctx context.Context, s progress.Score) (progress.Score, error) {
	switch {
	case !isUUID(s.ClassroomID):
		return progress.Score{}, classroom.ErrNotFound
	case !isUUID(s.StudentID):
		return progress.Score{}, user.ErrNotFound
	case s.Subject.IsCatalog() && !isUUID(s.Subject.SubjectID()):
		return progress.Score{}, subject.ErrNotFound
	case !core.ValidScore(s.Score):
		return progress.Score{}, core.NewFieldError("score", "score must be between 0 and 100 with at most two decimal places")
	}
	subjectID, freeText := s.Subject.Columns()
	q := psql.Insert("progress_scores").
		Columns(scoreColumns...).
		Values(s.ID, s.StudentID, s.ClassroomID, subjectID, freeText, s.TopicSource, s.Metric, s.Score, s.RecordedAt.UTC())
	if _, err := repo.db.exec(ctx, q); err != nil {
		return progress.Score{}, translate(err, "inserting progress score")
	}
	return s, nil
}

func (repo progressRepository) QueryScores(ctx context.Context, filter progress.Filter) ([]progress.Score, error) {
	scores := make([]progress.Score, 0)
	q := psql.Select(scoreColumns...).From("progress_scores").OrderBy("recorded_at", "id")

	for col, id := range map[string]string{
		"student_id":   filter.StudentID,
		"classroom_id": filter.ClassroomID,
		"subject_id":   filter.SubjectID,
	} {
		if id == "" {
			continue
		}
		if !isUUID(id) {
			return scores, nil
		}
		q = q.Where(sq.Eq{col: id})
	}
	if filter.FreeText != "" {
		q = q.Where(sq.Expr("lower(subject_free_text) = lower(?)", filter.FreeText))
	}
	if filter.Metric != "" {
		q = q.Where(sq.Eq{"metric": filter.Metric})
	}
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"recorded_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.LtOrEq{"recorded_at": filter.To.UTC()})
	}

	var rows []scoreRow
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying progress scores")
	}
	for _, r := range rows {
		s, err := r.toScore()
		if err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, nil
}
