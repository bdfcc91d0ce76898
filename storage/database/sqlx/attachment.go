package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx/types"
	"github.com/volatiletech/null/v8"

	"github.com/tutoria/tutoria/core/attachment"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/user"
)

var attachmentColumns = []string{
	"id", "owner_id", "scope", "chat_id", "evaluation_id", "storage_path", "metadata", "created_at",
}

type attachmentRow struct {
	ID           string         `db:"id"`
	OwnerID      string         `db:"owner_id"`
	Scope        string         `db:"scope"`
	ChatID       null.String    `db:"chat_id"`
	EvaluationID null.String    `db:"evaluation_id"`
	StoragePath  string         `db:"storage_path"`
	Metadata     types.JSONText `db:"metadata"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r attachmentRow) toAttachment() (attachment.Attachment, error) {
	target, err := attachment.TargetFromColumns(r.Scope, r.ChatID, r.EvaluationID)
	if err != nil {
		return attachment.Attachment{}, err
	}
	return attachment.Attachment{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Target:      target,
		StoragePath: r.StoragePath,
		Metadata:    []byte(r.Metadata),
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

type attachmentRepository struct {
	db *DB
}

var _ attachment.Repository = (*attachmentRepository)(nil) // interface compliance check

func NewAttachmentRepository(db *DB) *attachmentRepository {
	return &attachmentRepository{db: db}
}

func (repo attachmentRepository) CreateAttachment(ctx context.Context, a attachment.Attachment) (attachment.Attachment, error) {
	if !isUUID(a.OwnerID) {
		return attachment.Attachment{}, user.ErrNotFound
	}
	scope, chatID, evalID := a.Target.Columns()
	if _, err := attachment.TargetFromColumns(scope, chatID, evalID); err != nil {
		return attachment.Attachment{}, err
	}
	if !isUUID(a.Target.ID()) {
		if a.Target.IsChat() {
			return attachment.Attachment{}, chat.ErrNotFound
		}
		return attachment.Attachment{}, chat.ErrEvaluationNotFound
	}
	meta := types.JSONText(a.Metadata)
	if len(meta) == 0 {
		meta = types.JSONText("{}")
	}
	q := psql.Insert("attachments").
		Columns(attachmentColumns...).
		Values(a.ID, a.OwnerID, scope, chatID, evalID, a.StoragePath, meta, a.CreatedAt.UTC())
	if _, err := repo.db.exec(ctx, q); err != nil {
		return attachment.Attachment{}, translate(err, "inserting attachment")
	}
	a.Metadata = []byte(meta)
	return a, nil
}

func (repo attachmentRepository) GetAttachmentByID(ctx context.Context, id string) (attachment.Attachment, error) {
	if !isUUID(id) {
		return attachment.Attachment{}, attachment.ErrNotFound
	}
	var row attachmentRow
	q := psql.Select(attachmentColumns...).From("attachments").Where(sq.Eq{"id": id})
	if err := repo.db.get(ctx, &row, q); err != nil {
		return attachment.Attachment{}, trapNoRows(err, "finding attachment", attachment.ErrNotFound)
	}
	return row.toAttachment()
}

func (repo attachmentRepository) QueryAttachments(ctx context.Context, target attachment.Target) ([]attachment.Attachment, error) {
	atts := make([]attachment.Attachment, 0)
	if target.IsZero() || !isUUID(target.ID()) {
		return atts, nil
	}
	col := "chat_id"
	if target.Scope() == attachment.ScopeEvaluation {
		col = "evaluation_id"
	}
	var rows []attachmentRow
	q := psql.Select(attachmentColumns...).
		From("attachments").
		Where(sq.Eq{"scope": string(target.Scope()), col: target.ID()}).
		OrderBy("created_at", "id")
	if err := repo.db.sel(ctx, &rows, q); err != nil {
		return nil, translate(err, "querying attachments")
	}
	for _, r := range rows {
		a, err := r.toAttachment()
		if err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}
	return atts, nil
}
