package subject

import (
	"encoding/json"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/tutoria/tutoria/core"
)

// Kind discriminates the variants of a Ref.
type Kind int

const (
	KindNone Kind = iota
	KindCatalog
	KindFreeText
)

func (k Kind) String() string {
	switch k {
	case KindCatalog:
		return "catalog"
	case KindFreeText:
		return "free_text"
	default:
		return "none"
	}
}

var errBothSet = core.NewValidationError(nil,
	core.FieldError{Field: "subject_id", Error: "only one of subject_id or free_text can be set"},
	core.FieldError{Field: "free_text", Error: "only one of subject_id or free_text can be set"},
)

// Ref resolves the subject of a preference, chat or progress row:
// either a catalog subject of the classroom or free text, never both.
// The zero value resolves to no subject.
type Ref struct {
	kind      Kind
	subjectID string
	text      string
}

// Catalog refers to a catalog subject. A blank id yields the zero Ref.
func Catalog(subjectID string) Ref {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Ref{}
	}
	return Ref{kind: KindCatalog, subjectID: subjectID}
}

// FreeText refers to an uncatalogued subject. Text is trimmed; blank text yields the zero Ref.
func FreeText(text string) Ref {
	text = strings.TrimSpace(text)
	if text == "" {
		return Ref{}
	}
	return Ref{kind: KindFreeText, text: text}
}

// ParseRef builds a Ref from the two optional input fields; blank values count as absent.
func ParseRef(subjectID, freeText string) (Ref, error) {
	cat, txt := Catalog(subjectID), FreeText(freeText)
	switch {
	case !cat.IsZero() && !txt.IsZero():
		return Ref{}, errBothSet
	case !cat.IsZero():
		return cat, nil
	default:
		return txt, nil
	}
}

func (r Ref) Kind() Kind           { return r.kind }
func (r Ref) SubjectID() string    { return r.subjectID }
func (r Ref) Text() string         { return r.text }
func (r Ref) IsZero() bool         { return r.kind == KindNone }
func (r Ref) IsCatalog() bool      { return r.kind == KindCatalog }
func (r Ref) IsFreeText() bool     { return r.kind == KindFreeText }
func (r Ref) Equal(other Ref) bool { return r == other }

// LowerText is the case-insensitive key used for free-text uniqueness.
func (r Ref) LowerText() string { return strings.ToLower(r.text) }

// Columns renders the Ref into its (subject_id, free_text) storage columns.
func (r Ref) Columns() (subjectID, freeText null.String) {
	switch r.kind {
	case KindCatalog:
		subjectID = null.StringFrom(r.subjectID)
	case KindFreeText:
		freeText = null.StringFrom(r.text)
	}
	return subjectID, freeText
}

// RefFromColumns rebuilds a Ref from its storage columns, rejecting rows with both set.
func RefFromColumns(subjectID, freeText null.String) (Ref, error) {
	return ParseRef(subjectID.String, freeText.String)
}

type refJSON struct {
	SubjectID *string `json:"subject_id"`
	FreeText  *string `json:"free_text"`
}

func (r Ref) MarshalJSON() ([]byte, error) {
	var rj refJSON
	switch r.kind {
	case KindCatalog:
		rj.SubjectID = &r.subjectID
	case KindFreeText:
		rj.FreeText = &r.text
	}
	return json.Marshal(rj)
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	var rj refJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	var id, txt string
	if rj.SubjectID != nil {
		id = *rj.SubjectID
	}
	if rj.FreeText != nil {
		txt = *rj.FreeText
	}
	ref, err := ParseRef(id, txt)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
