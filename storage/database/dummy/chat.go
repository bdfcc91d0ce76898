package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/user"
)

var (
	errEndedAt      = core.NewFieldError("ended_at", "a chat cannot end before it starts")
	errOverallScore = core.NewFieldError("overall_score", "score must be between 0 and 100 with at most two decimal places")
)

type chatRepository struct {
	db *DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateSession(ctx context.Context, s chat.Session) (chat.Session, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	s.StartedAt = s.StartedAt.UTC()
	if s.EndedAt != nil {
		end := s.EndedAt.UTC()
		if end.Before(s.StartedAt) {
			return chat.Session{}, errEndedAt
		}
		s.EndedAt = &end
	}
	switch {
	case t.userIdx(s.StudentID) < 0:
		return chat.Session{}, user.ErrNotFound
	case t.classroomIdx(s.ClassroomID) < 0:
		return chat.Session{}, classroom.ErrNotFound
	}
	if err := t.checkSubjectRef(s.Subject); err != nil {
		return chat.Session{}, err
	}
	if len(s.Content) == 0 {
		s.Content = []byte("{}")
	}
	t.chats = append(t.chats, s)
	return s, nil
}

func (repo *chatRepository) GetSessionByID(ctx context.Context, id string) (chat.Session, error) {
	defer repo.db.lock(ctx)()
	if i := repo.db.t.chatIdx(id); i >= 0 {
		return repo.db.t.chats[i], nil
	}
	return chat.Session{}, chat.ErrNotFound
}

// GetSessionForUpdate needs no row lock: transactions hold the whole store.
func (repo *chatRepository) GetSessionForUpdate(ctx context.Context, id string) (chat.Session, error) {
	return repo.GetSessionByID(ctx, id)
}

func (repo *chatRepository) QuerySessions(ctx context.Context, filter chat.Filter) ([]chat.Session, error) {
	defer repo.db.lock(ctx)()
	sessions := make([]chat.Session, 0)
	for _, s := range repo.db.t.chats {
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassroomID != "" && s.ClassroomID != filter.ClassroomID {
			continue
		}
		sessions = append(sessions, s)
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].StartedAt.After(sessions[j].StartedAt) })
	if filter.Limit > 0 && len(sessions) > filter.Limit {
		sessions = sessions[:filter.Limit]
	}
	return sessions, nil
}

func (repo *chatRepository) CloseSession(ctx context.Context, id string, endedAt time.Time) (chat.Session, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	i := t.chatIdx(id)
	if i < 0 {
		return chat.Session{}, chat.ErrNotFound
	}
	s := &t.chats[i]
	if s.IsClosed() {
		return chat.Session{}, chat.ErrAlreadyClosed
	}
	end := endedAt.UTC()
	if end.Before(s.StartedAt) {
		return chat.Session{}, errEndedAt
	}
	s.EndedAt = &end
	return *s, nil
}

func (repo *chatRepository) UpdateSummary(ctx context.Context, id, summary string) (chat.Session, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	i := t.chatIdx(id)
	if i < 0 {
		return chat.Session{}, chat.ErrNotFound
	}
	t.chats[i].Summary = summary
	return t.chats[i], nil
}

// Evaluations

func (repo *chatRepository) CreateEvaluation(ctx context.Context, e chat.Evaluation) (chat.Evaluation, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	switch {
	case !core.ValidScore(e.OverallScore):
		return chat.Evaluation{}, errOverallScore
	case t.chatIdx(e.ChatID) < 0:
		return chat.Evaluation{}, chat.ErrNotFound
	case t.userIdx(e.EvaluatorID) < 0:
		return chat.Evaluation{}, user.ErrNotFound
	}
	e.CreatedAt = e.CreatedAt.UTC()
	t.evaluations = append(t.evaluations, e)
	return e, nil
}

func (repo *chatRepository) GetEvaluationByID(ctx context.Context, id string) (chat.Evaluation, error) {
	defer repo.db.lock(ctx)()
	if i := repo.db.t.evaluationIdx(id); i >= 0 {
		return repo.db.t.evaluations[i], nil
	}
	return chat.Evaluation{}, chat.ErrEvaluationNotFound
}

func (repo *chatRepository) QueryEvaluations(ctx context.Context, chatIDs ...string) ([]chat.Evaluation, error) {
	defer repo.db.lock(ctx)()
	ids := idSet(chatIDs)
	evals := make([]chat.Evaluation, 0)
	for _, e := range repo.db.t.evaluations {
		if ids[e.ChatID] {
			evals = append(evals, e)
		}
	}
	sort.SliceStable(evals, func(i, j int) bool { return evals[i].CreatedAt.Before(evals[j].CreatedAt) })
	return evals, nil
}

func (repo *chatRepository) CreateAutomatedEvaluation(ctx context.Context, a chat.AutomatedEvaluation) (chat.AutomatedEvaluation, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	if t.chatIdx(a.ChatID) < 0 {
		return chat.AutomatedEvaluation{}, chat.ErrNotFound
	}
	a.CreatedAt = a.CreatedAt.UTC()
	t.automated = append(t.automated, a)
	return a, nil
}

func (repo *chatRepository) QueryAutomatedEvaluations(ctx context.Context, chatIDs ...string) ([]chat.AutomatedEvaluation, error) {
	defer repo.db.lock(ctx)()
	ids := idSet(chatIDs)
	autos := make([]chat.AutomatedEvaluation, 0)
	for _, a := range repo.db.t.automated {
		if ids[a.ChatID] {
			autos = append(autos, a)
		}
	}
	sort.SliceStable(autos, func(i, j int) bool { return autos[i].CreatedAt.Before(autos[j].CreatedAt) })
	return autos, nil
}

func (repo *chatRepository) CountEvaluations(ctx context.Context, chatID string) (int, error) {
	defer repo.db.lock(ctx)()
	var n int
	for _, e := range repo.db.t.evaluations {
		if e.ChatID == chatID {
			n++
		}
	}
	for _, a := range repo.db.t.automated {
		if a.ChatID == chatID {
			n++
		}
	}
	return n, nil
}
