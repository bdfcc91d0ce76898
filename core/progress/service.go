package progress

import (
	"context"

	"github.com/google/uuid"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/subject"
)

type (
	Repository interface {
		// CreateScore rejects a row whose subject_id and free text are both set.
		CreateScore(ctx context.Context, s Score) (Score, error)
		// QueryScores orders scores by recorded_at. FreeText matches case-insensitively.
		QueryScores(ctx context.Context, filter Filter) ([]Score, error)
	}

	Service struct {
		repo      Repository
		subjects  *subject.Service
		tx        core.Transactor
		validator *core.Validator
	}
)

func NewService(repo Repository, subjects *subject.Service, tx core.Transactor, validator *core.Validator) *Service {
	return &Service{repo: repo, subjects: subjects, tx: tx, validator: validator}
}

// Record appends a score. A catalog subject must belong to the score's classroom;
// it may be inactive since scores can be recorded for past work.
func (svc *Service) Record(ctx context.Context, ns NewScore) (Score, error) {
	if err := ns.Validate(svc.validator); err != nil {
		return Score{}, err
	}
	ref, err := svc.subjects.ResolveRef(ctx, ns.ClassroomID, ns.Subject, false)
	if err != nil {
		return Score{}, err
	}
	return svc.repo.CreateScore(ctx, Score{
		ID:          uuid.New().String(),
		StudentID:   ns.StudentID,
		ClassroomID: ns.ClassroomID,
		Subject:     ref,
		TopicSource: ns.TopicSource,
		Metric:      ns.Metric,
		Score:       ns.Score,
		RecordedAt:  ns.RecordedAt,
	})
}

// RecordBatch appends all scores or none.
func (svc *Service) RecordBatch(ctx context.Context, batch []NewScore) ([]Score, error) {
	scores := make([]Score, 0, len(batch))
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, ns := range batch {
			s, err := svc.Record(ctx, ns)
			if err != nil {
				return err
			}
			scores = append(scores, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// Query returns the scores matching filter, oldest first.
func (svc *Service) Query(ctx context.Context, filter Filter) ([]Score, error) {
	filter.Clean()
	if filter.SubjectID != "" && filter.FreeText != "" {
		return nil, core.NewFieldError("subject_id", "only one of subject_id or free_text can be set")
	}
	return svc.repo.QueryScores(ctx, filter)
}
