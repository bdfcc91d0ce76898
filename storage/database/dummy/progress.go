package dummydb

import (
	"context"
	"sort"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/progress"
	"github.com/tutoria/tutoria/core/user"
)

var errScore = core.NewFieldError("score", "score must be between 0 and 100 with at most two decimal places")

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) CreateScore(ctx context.Context, s progress.Score) (progress.Score, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	switch {
	case !core.ValidScore(s.Score):
		return progress.Score{}, errScore
	case t.userIdx(s.StudentID) < 0:
		return progress.Score{}, user.ErrNotFound
	case t.classroomIdx(s.ClassroomID) < 0:
		return progress.Score{}, classroom.ErrNotFound
	}
	if err := t.checkSubjectRef(s.Subject); err != nil {
		return progress.Score{}, err
	}
	s.RecordedAt = s.RecordedAt.UTC()
	t.scores = append(t.scores, s)
	return s, nil
}

func (repo *progressRepository) QueryScores(ctx context.Context, filter progress.Filter) ([]progress.Score, error) {
	defer repo.db.lock(ctx)()
	scores := make([]progress.Score, 0)
	for _, s := range repo.db.t.scores {
		switch {
		case filter.StudentID != "" && s.StudentID != filter.StudentID,
			filter.ClassroomID != "" && s.ClassroomID != filter.ClassroomID,
			filter.SubjectID != "" && s.Subject.SubjectID() != filter.SubjectID,
			filter.FreeText != "" && !(s.Subject.IsFreeText() && lowerEq(s.Subject.Text(), filter.FreeText)),
			filter.Metric != "" && s.Metric != filter.Metric,
			!filter.From.IsZero() && s.RecordedAt.Before(filter.From),
			!filter.To.IsZero() && s.RecordedAt.After(filter.To):
			continue
		}
		scores = append(scores, s)
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].RecordedAt.Before(scores[j].RecordedAt) })
	return scores, nil
}
