package dummydb

import (
	"context"
	"sort"

	"github.com/tutoria/tutoria/core/attachment"
	"github.com/tutoria/tutoria/core/chat"
	"github.com/tutoria/tutoria/core/user"
)

type attachmentRepository struct {
	db *DB
}

var _ attachment.Repository = (*attachmentRepository)(nil) // interface compliance check

func NewAttachmentRepository(db *DB) *attachmentRepository {
	return &attachmentRepository{db: db}
}

func (repo *attachmentRepository) CreateAttachment(ctx context.Context, a attachment.Attachment) (attachment.Attachment, error) {
	defer repo.db.lock(ctx)()
	t := repo.db.t

	// attachments_scope_check
	if _, err := attachment.TargetFromColumns(a.Target.Columns()); err != nil {
		return attachment.Attachment{}, err
	}
	if t.userIdx(a.OwnerID) < 0 {
		return attachment.Attachment{}, user.ErrNotFound
	}
	if a.Target.IsChat() && t.chatIdx(a.Target.ID()) < 0 {
		return attachment.Attachment{}, chat.ErrNotFound
	}
	if a.Target.IsEval() && t.evaluationIdx(a.Target.ID()) < 0 {
		return attachment.Attachment{}, chat.ErrEvaluationNotFound
	}
	if len(a.Metadata) == 0 {
		a.Metadata = []byte("{}")
	}
	a.CreatedAt = a.CreatedAt.UTC()
	t.attachments = append(t.attachments, a)
	return a, nil
}

func (repo *attachmentRepository) GetAttachmentByID(ctx context.Context, id string) (attachment.Attachment, error) {
	defer repo.db.lock(ctx)()
	for _, a := range repo.db.t.attachments {
		if a.ID == id {
			return a, nil
		}
	}
	return attachment.Attachment{}, attachment.ErrNotFound
}

func (repo *attachmentRepository) QueryAttachments(ctx context.Context, target attachment.Target) ([]attachment.Attachment, error) {
	defer repo.db.lock(ctx)()
	atts := make([]attachment.Attachment, 0)
	for _, a := range repo.db.t.attachments {
		if !target.IsZero() && a.Target == target {
			atts = append(atts, a)
		}
	}
	sort.SliceStable(atts, func(i, j int) bool { return atts[i].CreatedAt.Before(atts[j].CreatedAt) })
	return atts, nil
}
