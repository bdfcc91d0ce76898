package attachment

import (
	"context"

	"github.com/google/uuid"

	"github.com/tutoria/tutoria/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("attachment")
)

type (
	Repository interface {
		// CreateAttachment rejects a target whose scope disagrees with the populated key,
		// and a target that does not exist.
		CreateAttachment(ctx context.Context, a Attachment) (Attachment, error)
		GetAttachmentByID(ctx context.Context, id string) (Attachment, error)
		// QueryAttachments orders the attachments of the target by created_at.
		QueryAttachments(ctx context.Context, target Target) ([]Attachment, error)
	}

	Service struct {
		repo      Repository
		validator *core.Validator
	}
)

func NewService(repo Repository, validator *core.Validator) *Service {
	return &Service{repo: repo, validator: validator}
}

func (svc *Service) Create(ctx context.Context, na NewAttachment) (Attachment, error) {
	if err := na.Validate(svc.validator); err != nil {
		return Attachment{}, err
	}
	target, err := ParseTarget(na.Scope, na.TargetID)
	if err != nil {
		return Attachment{}, err
	}
	meta := na.Metadata
	if meta == nil {
		meta = []byte("{}")
	}
	return svc.repo.CreateAttachment(ctx, Attachment{
		ID:          uuid.New().String(),
		OwnerID:     na.OwnerID,
		Target:      target,
		StoragePath: na.StoragePath,
		Metadata:    meta,
		CreatedAt:   core.NowFunc(),
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Attachment, error) {
	return svc.repo.GetAttachmentByID(ctx, id)
}

func (svc *Service) ListForChat(ctx context.Context, chatID string) ([]Attachment, error) {
	return svc.repo.QueryAttachments(ctx, ChatTarget(chatID))
}

func (svc *Service) ListForEvaluation(ctx context.Context, evaluationID string) ([]Attachment, error) {
	return svc.repo.QueryAttachments(ctx, EvaluationTarget(evaluationID))
}
