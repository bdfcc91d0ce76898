package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("chat")
	ErrEvaluationNotFound = core.NewNotFoundError("chat evaluation")
	ErrAlreadyClosed      = core.NewFieldError("ended_at", "this chat is already closed")
	ErrEvaluated          = core.NewFieldError("summary", "an evaluated chat cannot be modified")
	ErrEvaluatedClose     = core.NewFieldError("ended_at", "an evaluated chat cannot be closed")
	ErrBotEvaluation      = core.NewFieldError("bot_evaluation", "must be a JSON object")
)

type (
	Repository interface {
		// CreateSession rejects a row whose subject_id and free text are both set.
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		// GetSessionForUpdate locks the chat row until the surrounding transaction ends.
		GetSessionForUpdate(ctx context.Context, id string) (Session, error)
		// QuerySessions orders chats by started_at, most recent first.
		QuerySessions(ctx context.Context, filter Filter) ([]Session, error)
		// CloseSession stamps ended_at on an open chat; ErrAlreadyClosed if it was closed.
		CloseSession(ctx context.Context, id string, endedAt time.Time) (Session, error)
		UpdateSummary(ctx context.Context, id, summary string) (Session, error)

		CreateEvaluation(ctx context.Context, e Evaluation) (Evaluation, error)
		GetEvaluationByID(ctx context.Context, id string) (Evaluation, error)
		// QueryEvaluations orders evaluations of the given chats by created_at.
		QueryEvaluations(ctx context.Context, chatIDs ...string) ([]Evaluation, error)
		CreateAutomatedEvaluation(ctx context.Context, a AutomatedEvaluation) (AutomatedEvaluation, error)
		// QueryAutomatedEvaluations orders automated evaluations of the given chats by created_at.
		QueryAutomatedEvaluations(ctx context.Context, chatIDs ...string) ([]AutomatedEvaluation, error)
		// CountEvaluations counts human and automated evaluations of a chat.
		CountEvaluations(ctx context.Context, chatID string) (int, error)
	}

	Service struct {
		repo       Repository
		users      user.Repository
		classrooms *classroom.Service
		subjects   *subject.Service
		tx         core.Transactor
		validator  *core.Validator
	}
)

func NewService(
	repo Repository,
	users user.Repository,
	classrooms *classroom.Service,
	subjects *subject.Service,
	tx core.Transactor,
	validator *core.Validator,
) *Service {
	return &Service{repo: repo, users: users, classrooms: classrooms, subjects: subjects, tx: tx, validator: validator}
}

// Open starts a chat for an active student of the classroom (admins may chat anywhere).
// The subject is an active catalog subject of the classroom, free text, or none.
func (svc *Service) Open(ctx context.Context, ns NewSession) (Session, error) {
	if err := ns.Validate(svc.validator); err != nil {
		return Session{}, err
	}
	if _, err := svc.classrooms.Get(ctx, ns.ClassroomID); err != nil {
		return Session{}, err
	}
	std, err := svc.users.GetUserByID(ctx, ns.StudentID)
	if err != nil {
		return Session{}, err
	}
	if !std.IsAdmin() {
		ok, err := svc.classrooms.IsStudentOf(ctx, ns.ClassroomID, std.ID)
		if err != nil {
			return Session{}, err
		}
		if !ok {
			return Session{}, core.NewNotAMemberError(ns.ClassroomID, std.ID)
		}
	}
	ref, err := svc.subjects.ResolveRef(ctx, ns.ClassroomID, ns.Subject, true)
	if err != nil {
		return Session{}, err
	}

	content := ns.Content
	if content == nil {
		content = json.RawMessage("{}")
	}
	return svc.repo.CreateSession(ctx, Session{
		ID:          uuid.New().String(),
		StudentID:   std.ID,
		ClassroomID: ns.ClassroomID,
		Subject:     ref,
		TopicSource: ns.TopicSource,
		Content:     content,
		Summary:     ns.Summary,
		StartedAt:   ns.StartedAt,
		EndedAt:     ns.EndedAt,
	})
}

// Close stamps ended_at (now when zero). Closed and evaluated chats are rejected.
func (svc *Service) Close(ctx context.Context, id string, endedAt time.Time) (Session, error) {
	if endedAt.IsZero() {
		endedAt = core.NowFunc()
	}
	endedAt = endedAt.UTC()

	var sess Session
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if sess, err = svc.repo.GetSessionForUpdate(ctx, id); err != nil {
			return err
		}
		if sess.IsClosed() {
			return ErrAlreadyClosed
		}
		n, err := svc.repo.CountEvaluations(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrEvaluatedClose
		}
		if endedAt.Before(sess.StartedAt) {
			return errEndBeforeStart
		}
		sess, err = svc.repo.CloseSession(ctx, id, endedAt)
		return err
	})
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// SetSummary updates the summary of a chat no one evaluated yet.
func (svc *Service) SetSummary(ctx context.Context, id, summary string) (Session, error) {
	summary = core.CleanString(summary)

	var sess Session
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetSessionForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := svc.repo.CountEvaluations(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrEvaluated
		}
		sess, err = svc.repo.UpdateSummary(ctx, id, summary)
		return err
	})
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

// GetOverview returns a chat with its evaluations.
func (svc *Service) GetOverview(ctx context.Context, id string) (Overview, error) {
	sess, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Overview{}, err
	}
	ovs, err := svc.overviews(ctx, []Session{sess})
	if err != nil {
		return Overview{}, err
	}
	return ovs[0], nil
}

func (svc *Service) ListForStudent(ctx context.Context, studentID string, limit int) ([]Session, error) {
	return svc.List(ctx, Filter{StudentID: studentID, Limit: limit})
}

func (svc *Service) ListForClassroom(ctx context.Context, classroomID string, limit int) ([]Session, error) {
	return svc.List(ctx, Filter{ClassroomID: classroomID, Limit: limit})
}

// ListAll returns the most recent chats across classrooms.
func (svc *Service) ListAll(ctx context.Context, limit int) ([]Session, error) {
	return svc.List(ctx, Filter{Limit: limit})
}

// List returns the chats matching filter, most recent first.
func (svc *Service) List(ctx context.Context, filter Filter) ([]Session, error) {
	filter.Clean()
	return svc.repo.QuerySessions(ctx, filter)
}

// ListOverviews is List with each chat enriched with its evaluations.
func (svc *Service) ListOverviews(ctx context.Context, filter Filter) ([]Overview, error) {
	sessions, err := svc.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return svc.overviews(ctx, sessions)
}

func (svc *Service) overviews(ctx context.Context, sessions []Session) ([]Overview, error) {
	ovs := make([]Overview, 0, len(sessions))
	if len(sessions) == 0 {
		return ovs, nil
	}
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}

	evals, err := svc.repo.QueryEvaluations(ctx, ids...)
	if err != nil {
		return nil, err
	}
	autos, err := svc.repo.QueryAutomatedEvaluations(ctx, ids...)
	if err != nil {
		return nil, err
	}

	evalsByChat := make(map[string][]Evaluation, len(sessions))
	for _, e := range evals {
		evalsByChat[e.ChatID] = append(evalsByChat[e.ChatID], e)
	}
	latestByChat := make(map[string]AutomatedEvaluation, len(sessions))
	for _, a := range autos {
		latestByChat[a.ChatID] = a // ascending order: the last one wins
	}

	for _, s := range sessions {
		ov := Overview{Session: s, Evaluations: evalsByChat[s.ID]}
		if ov.Evaluations == nil {
			ov.Evaluations = []Evaluation{}
		}
		if a, ok := latestByChat[s.ID]; ok {
			a := a
			ov.LatestAutomated = &a
		}
		ovs = append(ovs, ov)
	}
	return ovs, nil
}
