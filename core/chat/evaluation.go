package chat

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/tutoria/tutoria/core"
)

// Evaluate appends a human evaluation. The evaluator must teach the chat's classroom or be an admin.
func (svc *Service) Evaluate(ctx context.Context, ne NewEvaluation) (Evaluation, error) {
	if err := ne.Validate(svc.validator); err != nil {
		return Evaluation{}, err
	}
	evaluator, err := svc.users.GetUserByID(ctx, ne.EvaluatorID)
	if err != nil {
		return Evaluation{}, err
	}

	var eval Evaluation
	err = svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		sess, err := svc.repo.GetSessionForUpdate(ctx, ne.ChatID)
		if err != nil {
			return err
		}
		if !evaluator.IsAdmin() {
			ok, err := svc.classrooms.IsTeacherOf(ctx, sess.ClassroomID, evaluator.ID)
			if err != nil {
				return err
			}
			if !ok {
				return core.NewNotAMemberError(sess.ClassroomID, evaluator.ID)
			}
		}
		eval, err = svc.repo.CreateEvaluation(ctx, Evaluation{
			ID:           uuid.New().String(),
			ChatID:       sess.ID,
			EvaluatorID:  evaluator.ID,
			OverallScore: ne.OverallScore,
			Comments:     ne.Comments,
			CreatedAt:    core.NowFunc(),
		})
		return err
	})
	if err != nil {
		return Evaluation{}, err
	}
	return eval, nil
}

// RecordAutomated appends a machine evaluation; payload must be a JSON object.
func (svc *Service) RecordAutomated(ctx context.Context, chatID string, payload json.RawMessage) (AutomatedEvaluation, error) {
	if !core.IsJSONObject(payload) {
		return AutomatedEvaluation{}, ErrBotEvaluation
	}

	var auto AutomatedEvaluation
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		sess, err := svc.repo.GetSessionForUpdate(ctx, core.CleanString(chatID))
		if err != nil {
			return err
		}
		auto, err = svc.repo.CreateAutomatedEvaluation(ctx, AutomatedEvaluation{
			ID:            uuid.New().String(),
			ChatID:        sess.ID,
			BotEvaluation: payload,
			CreatedAt:     core.NowFunc(),
		})
		return err
	})
	if err != nil {
		return AutomatedEvaluation{}, err
	}
	return auto, nil
}

func (svc *Service) GetEvaluation(ctx context.Context, id string) (Evaluation, error) {
	return svc.repo.GetEvaluationByID(ctx, id)
}

// ListEvaluations returns the human evaluations of a chat, oldest first.
func (svc *Service) ListEvaluations(ctx context.Context, chatID string) ([]Evaluation, error) {
	if _, err := svc.repo.GetSessionByID(ctx, chatID); err != nil {
		return nil, err
	}
	return svc.repo.QueryEvaluations(ctx, chatID)
}

// ListAutomated returns the automated evaluations of a chat, oldest first.
func (svc *Service) ListAutomated(ctx context.Context, chatID string) ([]AutomatedEvaluation, error) {
	if _, err := svc.repo.GetSessionByID(ctx, chatID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAutomatedEvaluations(ctx, chatID)
}

// LatestAutomated returns the most recent automated evaluation of a chat, nil if there is none.
func (svc *Service) LatestAutomated(ctx context.Context, chatID string) (*AutomatedEvaluation, error) {
	autos, err := svc.ListAutomated(ctx, chatID)
	if err != nil || len(autos) == 0 {
		return nil, err
	}
	return &autos[len(autos)-1], nil
}
