package classroom

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/tutoria/tutoria/core"
)

// OwnerRoleLabel labels the implicit teacher membership of a classroom creator.
const OwnerRoleLabel = "owner"

// StudentStatus is the enrollment lifecycle of a student: invited -> active -> removed.
// removed is a tombstone: the row stays so history remains attributable, and it is never reused.
type StudentStatus string

const (
	StatusInvited StudentStatus = "invited"
	StatusActive  StudentStatus = "active"
	StatusRemoved StudentStatus = "removed"
)

var (
	AllStatuses = []StudentStatus{StatusInvited, StatusActive, StatusRemoved}

	// MemberStatuses are the statuses of students that appear on the active roster.
	MemberStatuses = []StudentStatus{StatusInvited, StatusActive}

	statusTransitions = map[StudentStatus][]StudentStatus{
		StatusInvited: {StatusActive, StatusRemoved},
		StatusActive:  {StatusRemoved},
	}
)

func (s StudentStatus) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsMember reports whether the status still counts as an enrollment.
func (s StudentStatus) IsMember() bool {
	return s == StatusInvited || s == StatusActive
}

func (s StudentStatus) CanTransitionTo(next StudentStatus) bool {
	for _, st := range statusTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

type Classroom struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ThemeName   string          `json:"theme_name"`
	ThemeConfig json.RawMessage `json:"theme_config"`
	ThemeLocked bool            `json:"theme_locked"`
	CreatedBy   string          `json:"created_by"`
	IsArchived  bool            `json:"is_archived"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC
}

type Teacher struct {
	ClassroomID string    `json:"classroom_id"`
	TeacherID   string    `json:"teacher_id"`
	AddedAt     time.Time `json:"added_at"` // UTC
	RoleLabel   string    `json:"role_label,omitempty"`
}

type Student struct {
	ClassroomID string        `json:"classroom_id"`
	StudentID   string        `json:"student_id"`
	Status      StudentStatus `json:"status"`
	JoinedAt    time.Time     `json:"joined_at"` // UTC
}

type Roster struct {
	Teachers []Teacher `json:"teachers"`
	Students []Student `json:"students"`
}

// NewClassroom contains information needed to create a new Classroom.
// ThemeName defaults to the classroom name.
type NewClassroom struct {
	Name        string          `json:"name" validate:"required,notblank,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	ThemeName   string          `json:"theme_name" validate:"max=200"`
	ThemeConfig json.RawMessage `json:"theme_config" validate:"omitempty,jsonobject"`
}

func (nc *NewClassroom) Validate(v *core.Validator) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.ThemeName = core.CleanString(nc.ThemeName)
	nc.ThemeConfig = core.CleanJSON(nc.ThemeConfig)
	if nc.ThemeName == "" {
		nc.ThemeName = nc.Name
	}
	return v.Struct(nc)
}

// UpdateClassroom defines what information may be provided to modify an existing Classroom.
// nil fields are left untouched.
type UpdateClassroom struct {
	Name        *string         `json:"name" validate:"omitempty,notblank,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	ThemeName   *string         `json:"theme_name" validate:"omitempty,notblank,max=200"`
	ThemeConfig json.RawMessage `json:"theme_config" validate:"omitempty,jsonobject"`
	ThemeLocked *bool           `json:"theme_locked"`
	IsArchived  *bool           `json:"is_archived"`
}

func (uc *UpdateClassroom) Validate(v *core.Validator) error {
	for _, s := range []*string{uc.Name, uc.Description, uc.ThemeName} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	uc.ThemeConfig = core.CleanJSON(uc.ThemeConfig)
	return v.Struct(uc)
}

// changesTheme reports whether applying uc would mutate the theme name or config of cls.
func (uc UpdateClassroom) changesTheme(cls Classroom) bool {
	if uc.ThemeName != nil && *uc.ThemeName != cls.ThemeName {
		return true
	}
	return uc.ThemeConfig != nil && !jsonEqual(uc.ThemeConfig, cls.ThemeConfig)
}

func (uc UpdateClassroom) apply(cls *Classroom) {
	if uc.Name != nil {
		cls.Name = *uc.Name
	}
	if uc.Description != nil {
		cls.Description = *uc.Description
	}
	if uc.ThemeName != nil {
		cls.ThemeName = *uc.ThemeName
	}
	if uc.ThemeConfig != nil {
		cls.ThemeConfig = uc.ThemeConfig
	}
	if uc.ThemeLocked != nil {
		cls.ThemeLocked = *uc.ThemeLocked
	}
	if uc.IsArchived != nil {
		cls.IsArchived = *uc.IsArchived
	}
}

// jsonEqual compares two JSON documents semantically (key order and spacing ignored).
func jsonEqual(a, b json.RawMessage) bool {
	var va, vb interface{}
	if err := json.Unmarshal(a, &va); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// NewTeacher assigns a teacher to a classroom.
type NewTeacher struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	RoleLabel string `json:"role_label" validate:"max=50"`
}

// NewStudent enrolls a student; Status defaults to active.
type NewStudent struct {
	StudentID string        `json:"student_id" validate:"required"`
	Status    StudentStatus `json:"status" validate:"omitempty,student_status"`
}
