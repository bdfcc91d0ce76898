package attachment

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tutoria/tutoria/core"
)

// Attachment references a file in external storage, attached to a chat or an evaluation.
// Attachments are write-once.
type Attachment struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Target      Target          `json:"target"`
	StoragePath string          `json:"storage_path"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
}

type NewAttachment struct {
	OwnerID     string          `json:"owner_id" validate:"required"`
	Scope       Scope           `json:"scope" validate:"required,scope"`
	TargetID    string          `json:"target_id" validate:"required"`
	StoragePath string          `json:"storage_path" validate:"required,notblank,max=1024"`
	Metadata    json.RawMessage `json:"metadata" validate:"omitempty,jsonobject"`
}

func (na *NewAttachment) Validate(v *core.Validator) error {
	na.OwnerID = core.CleanString(na.OwnerID)
	na.Scope = Scope(core.CleanString(string(na.Scope), true /* lower */))
	na.TargetID = core.CleanString(na.TargetID)
	na.StoragePath = NormalizePath(na.StoragePath)
	na.Metadata = core.CleanJSON(na.Metadata)
	return v.Struct(na)
}

// NormalizePath trims the storage path and strips its leading slashes.
func NormalizePath(path string) string {
	return strings.TrimLeft(strings.TrimSpace(path), "/")
}
