package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/classroom"
	"github.com/tutoria/tutoria/core/subject"
	"github.com/tutoria/tutoria/core/user"
)

var (
	sessionColumns = []string{
		"id", "student_id", "classroom_id", "subject_id", "subject_free_text",
		"topic_source", "content", "summary", "started_at", "ended_at",
	}
	evaluationColumns = []string{"id", "chat_id", "evaluator_id", "overall_score", "comments", "created_at"}
	automatedColumns  = []string{"id", "chat_id", "bot_evaluation", "created_at"}
)

type (
	sessionRow struct {
		ID              string         `db:"id"`
		StudentID       string         `db:"student_id"`
		ClassroomID     string         `db:"classroom_id"`
		SubjectID       null.String    `db:"subject_id"`
		SubjectFreeText null.String    `db:"subject_free_text"`
		TopicSource     string         `db:"topic_source"`
		Content         types.JSONText `db:"content"`
		Summary         string         `db:"summary"`
		StartedAt       time.Time      `db:"started_at"`
		EndedAt         null.Time      `db:"ended_at"`
	}

	evaluationRow struct {
		ID           string    `db:"id"`
		ChatID       string    `db:"chat_id"`
		EvaluatorID  string    `db:"evaluator_id"`
		OverallScore float64   `db:"overall_score"`
		Comments     string    `db:"comments"`
		CreatedAt    time.Time `db:"created_at"`
	}

	automatedRow struct {
		ID            string         `db:"id"`
		ChatID        string         `db:"chat_id"`
		BotEvaluation types.JSONText `db:"bot_evaluation"`
		CreatedAt     time.Time      `db:"created_at"`
	}
)

func (r sessionRow) toSession() (chat.Session, error) {
	ref, err := subject.RefFromColumns(r.SubjectID, r.SubjectFreeText)
	if err != nil {
		return chat.Session{}, err
	}
	sess := chat.Session{
		ID:          r.ID,
		StudentID:   r.StudentID,
		ClassroomID: r.ClassroomID,
		Subject:     ref,
		TopicSource: r.TopicSource,
		Content:     []byte(r.Content),
		Summary:     r.Summary,
		StartedAt:   r.StartedAt.UTC(),
	}
	if r.EndedAt.Valid {
		end := r.EndedAt.Time.UTC()
		sess.EndedAt = &end
	}
	return sess, nil
}

func (r evaluationRow) toEvaluation() chat.Evaluation {
	return chat.Evaluation{
		ID:           r.ID,
		ChatID:       r.ChatID,
		EvaluatorID:  r.EvaluatorID,
		OverallScore: r.OverallScore,
		Comments:     r.Comments,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func (r automatedRow) toAutomated() chat.AutomatedEvaluation {
	return chat.AutomatedEvaluation{
		ID:            r.ID,
		ChatID:        r.ChatID,
		BotEvaluation: []byte(r.BotEvaluation),
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type chatRepository struct {
	db *DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo chatRepository) CreateSession(ctx context.Context, s chat.Session) (chat.Session, error) {
	switch {
	case !isUUID(s.ClassroomID):
		return chat.Session{}, classroom.ErrNotFound
	case !isUUID(s.StudentID):
		return chat.Session{}, user.ErrNotFound
	case s.Subject.IsCatalog() && !isUUID(s.Subject.SubjectID()):
		return chat.Session{}, subject.ErrNotFound
	}
	subjectID, freeText := s.Subject.Columns()
	content := types.JSONText(s.Content)
	if len(content) == 0 {
		content = types.JSONText("{}")
	}
	q := psql.Insert("chats").
		Columns(sessionColumns...).
		Values(
			s.ID, s.StudentID, s.ClassroomID, subjectID, freeText,
			s.TopicSource, content, s.Summary, s.StartedAt.UTC(), null.TimeFromPtr(s.EndedAt),
		)
	if _, err := repo.db.exec(ctx, q); err != nil {
		return chat.Session{}, translate(err, "inserting chat")
	}
	s.Content = []byte(content)
	return s, nil
}

func (repo chatRepository) getSession(ctx context.Context, id string, forUpdate bool) (chat.Session, error) {
	if !isUUID(id) {
		return chat.Session{}, chat.ErrNotFound
	}
	q := psql.Select(sessionColumns...).From("chats").Where(sq.Eq{"id": id})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	var row sessionRow
	if err := repo.db.get(ctx, &row, q); err != nil {
		return chat.Session{}, trapNoRows(err, "finding chat", chat.ErrNotFound)
	}
	return row.toSession()
}

func (repo chatRepository) GetSessionByID(ctx context.Context, id string) (chat.Session, error) {
	return repo.getSession(ctx, id, false)
}

func (repo chatRepository) GetSessionForUpdate(ctx context.Context, id string) (chat.Session, error) {
	return repo.getSession(ctx, id, true)
}

func (repo chatRepository) QuerySessions(ctx context.Context, filter chat.Filter) ([]chat.Session, error) {
	sessions := make([]chat.Session, 0)
	q := psql.Select(sessionColumns...).From("chats").OrderBy("started_at DESC", "id")
	if filter.StudentID != "" {
		if !isUUID(filter.StudentID) {
			return sessions, nil
		}
		q = q.Where(sq.Eq{"student_id": filter.StudentID})
	}
	if filter.ClassroomID != "" {
		if !isUUID(filter.ClassroomID) {
			return sessions, nil
		}
		q = q.Where(sq.Eq{"classroom_id": filter.ClassroomID})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	var rows []sessionRow
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying chats")
	}
	for _, r := range rows {
		s, err := r.toSession()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (repo chatRepository) CloseSession(ctx context.Context, id string, endedAt time.Time) (chat.Session, error) {
	if !isUUID(id) {
		return chat.Session{}, chat.ErrNotFound
	}
	q := psql.Update("chats").
		Set("ended_at", endedAt.UTC()).
		Where(sq.Eq{"id": id, "ended_at": nil}).
		Suffix("RETURNING " + strings.Join(sessionColumns, ", "))
	var row sessionRow
	if err := repo.db.get(ctx, &row, q); err != nil {
		if errors.Cause(err) != sql.ErrNoRows {
			return chat.Session{}, translate(err, "closing chat")
		}
		// either missing or already closed
		if _, err := repo.GetSessionByID(ctx, id); err != nil {
			return chat.Session{}, err
		}
		return chat.Session{}, chat.ErrAlreadyClosed
	}
	return row.toSession()
}

func (repo chatRepository) UpdateSummary(ctx context.Context, id, summary string) (chat.Session, error) {
	if !isUUID(id) {
		return chat.Session{}, chat.ErrNotFound
	}
	q := psql.Update("chats").
		Set("summary", summary).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(sessionColumns, ", "))
	var row sessionRow
	if err := repo.db.get(ctx, &row, q); err != nil {
		return chat.Session{}, trapNoRows(err, "updating chat summary", chat.ErrNotFound)
	}
	return row.toSession()
}

// Evaluations

func (repo chatRepository) CreateEvaluation(ctx context.Context, e chat.Evaluation) (chat.Evaluation, error) {
	if !isUUID(e.ChatID) {
		return chat.Evaluation{}, chat.ErrNotFound
	}
	if !isUUID(e.EvaluatorID) {
		return chat.Evaluation{}, user.ErrNotFound
	}
	if !core.ValidScore(e.OverallScore) {
		return chat.Evaluation{}, core.NewFieldError("overall_score", "score must be between 0 and 100 with at most two decimal places")
	}
	q := psql.Insert("chat_evaluations").
		Columns(evaluationColumns...).
		Values(e.ID, e.ChatID, e.EvaluatorID, e.OverallScore, e.Comments, e.CreatedAt.UTC())
	if _, err := repo.db.exec(ctx, q); err != nil {
		return chat.Evaluation{}, translate(err, "inserting chat evaluation")
	}
	return e, nil
}

func (repo chatRepository) GetEvaluationByID(ctx context.Context, id string) (chat.Evaluation, error) {
	if !isUUID(id) {
		return chat.Evaluation{}, chat.ErrEvaluationNotFound
	}
	var row evaluationRow
	q := psql.Select(evaluationColumns...).From("chat_evaluations").Where(sq.Eq{"id": id})
	if err := repo.db.get(ctx, &row, q); err != nil {
		return chat.Evaluation{}, trapNoRows(err, "finding chat evaluation", chat.ErrEvaluationNotFound)
	}
	return row.toEvaluation(), nil
}

func (repo chatRepository) QueryEvaluations(ctx context.Context, chatIDs ...string) ([]chat.Evaluation, error) {
	evals := make([]chat.Evaluation, 0)
	ids := validUUIDs(chatIDs)
	if len(ids) == 0 {
		return evals, nil
	}
	var rows []evaluationRow
	q := psql.Select(evaluationColumns...).
		From("chat_evaluations").
		Where(sq.Eq{"chat_id": ids}).
		OrderBy("created_at", "id")
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying chat evaluations")
	}
	for _, r := range rows {
		evals = append(evals, r.toEvaluation())
	}
	return evals, nil
}

func (repo chatRepository) CreateAutomatedEvaluation(ctx context.Context, a chat.AutomatedEvaluation) (chat.AutomatedEvaluation, error) {
	if !isUUID(a.ChatID) {
		return chat.AutomatedEvaluation{}, chat.ErrNotFound
	}
	q := psql.Insert("automated_chat_evaluations").
		Columns(automatedColumns...).
		Values(a.ID, a.ChatID, types.JSONText(a.BotEvaluation), a.CreatedAt.UTC())
	if _, err := repo.db.exec(ctx, q); err != nil {
		return chat.AutomatedEvaluation{}, translate(err, "inserting automated chat evaluation")
	}
	return a, nil
}

func (repo chatRepository) QueryAutomatedEvaluations(ctx context.Context, chatIDs ...string) ([]chat.AutomatedEvaluation, error) {
	autos := make([]chat.AutomatedEvaluation, 0)
	ids := validUUIDs(chatIDs)
	if len(ids) == 0 {
		return autos, nil
	}
	var rows []automatedRow
	q := psql.Select(automatedColumns...).
		From("automated_chat_evaluations").
		Where(sq.Eq{"chat_id": ids}).
		OrderBy("created_at", "id")
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying automated chat evaluations")
	}
	for _, r := range rows {
		autos = append(autos, r.toAutomated())
	}
	return autos, nil
}

func (repo chatRepository) CountEvaluations(ctx context.Context, chatID string) (int, error) {
	if !isUUID(chatID) {
		return 0, nil
	}
	const q = `SELECT
		(SELECT count(*) FROM chat_evaluations WHERE chat_id = $1) +
		(SELECT count(*) FROM automated_chat_evaluations WHERE chat_id = $1)`
	var n int
	if err := sqlx.GetContext(ctx, repo.db.ext(ctx), &n, q, chatID); err != nil {
		return 0, translate(err, "counting chat evaluations")
	}
	return n, nil
}
