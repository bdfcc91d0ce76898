package classroom

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tutoria/tutoria/core"
	"github.com/tutoria/tutoria/core/user"
)

// DefaultDocumentBucket is the storage bucket documents are uploaded to when none is given.
const DefaultDocumentBucket = "classroom-documents"

// Document is a reference to a file shared with a classroom; the file itself lives in external storage.
type Document struct {
	ID            string    `json:"id"`
	ClassroomID   string    `json:"classroom_id"`
	Name          string    `json:"name"`
	StorageBucket string    `json:"storage_bucket"`
	StoragePath   string    `json:"storage_path"`
	ContentType   string    `json:"content_type,omitempty"`
	FileSize      int64     `json:"file_size"`
	UploadedBy    string    `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

type NewDocument struct {
	Name          string `json:"name" validate:"required,notblank,max=255"`
	StorageBucket string `json:"storage_bucket" validate:"max=100"`
	StoragePath   string `json:"storage_path" validate:"required,notblank"`
	ContentType   string `json:"content_type" validate:"max=255"`
	FileSize      int64  `json:"file_size" validate:"min=0"`
}

func (nd *NewDocument) Validate(v *core.Validator) error {
	nd.Name = core.CleanString(nd.Name)
	nd.StorageBucket = core.CleanString(nd.StorageBucket)
	if nd.StorageBucket == "" {
		nd.StorageBucket = DefaultDocumentBucket
	}
	nd.StoragePath = strings.TrimLeft(core.CleanString(nd.StoragePath), "/")
	nd.ContentType = core.CleanString(nd.ContentType, true /* lower */)
	return v.Struct(nd)
}

// AddDocument records a document uploaded by a teacher of the classroom (or an admin).
func (svc *Service) AddDocument(ctx context.Context, classroomID string, nd NewDocument, uploader user.User) (Document, error) {
	if err := nd.Validate(svc.validator); err != nil {
		return Document{}, err
	}
	if !uploader.IsAdmin() {
		ok, err := svc.IsTeacherOf(ctx, classroomID, uploader.ID)
		if err != nil {
			return Document{}, err
		}
		if !ok {
			return Document{}, core.NewNotAMemberError(classroomID, uploader.ID)
		}
	}

	now := core.NowFunc()
	return svc.repo.AddDocument(ctx, Document{
		ID:            uuid.New().String(),
		ClassroomID:   classroomID,
		Name:          nd.Name,
		StorageBucket: nd.StorageBucket,
		StoragePath:   nd.StoragePath,
		ContentType:   nd.ContentType,
		FileSize:      nd.FileSize,
		UploadedBy:    uploader.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *Service) GetDocument(ctx context.Context, id string) (Document, error) {
	return svc.repo.GetDocument(ctx, id)
}

// ListDocuments returns the classroom documents ordered case-insensitively by name.
func (svc *Service) ListDocuments(ctx context.Context, classroomID string) ([]Document, error) {
	if _, err := svc.repo.GetClassroomByID(ctx, classroomID); err != nil {
		return nil, err
	}
	return svc.repo.QueryDocuments(ctx, classroomID)
}

func (svc *Service) DeleteDocument(ctx context.Context, id string) error {
	return svc.repo.DeleteDocument(ctx, id)
}
