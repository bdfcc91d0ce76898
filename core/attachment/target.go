package attachment

import (
	"encoding/json"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/tutoria/tutoria/core"
)

// Scope names the kind of entity an attachment hangs off.
type Scope string

const (
	ScopeChat       Scope = "chat"
	ScopeEvaluation Scope = "evaluation"
)

func (s Scope) IsValid() bool { return s == ScopeChat || s == ScopeEvaluation }

var errScopeMismatch = core.NewFieldError("scope", "scope must match exactly one of chat_id or evaluation_id")

// Target is the entity an attachment belongs to: a chat or a chat evaluation.
// The zero value targets nothing and is rejected on write.
type Target struct {
	scope Scope
	id    string
}

func ChatTarget(chatID string) Target {
	return Target{scope: ScopeChat, id: strings.TrimSpace(chatID)}
}

func EvaluationTarget(evaluationID string) Target {
	return Target{scope: ScopeEvaluation, id: strings.TrimSpace(evaluationID)}
}

// ParseTarget builds a Target from a scope and an id.
func ParseTarget(scope Scope, id string) (Target, error) {
	switch scope {
	case ScopeChat:
		return ChatTarget(id), nil
	case ScopeEvaluation:
		return EvaluationTarget(id), nil
	}
	return Target{}, core.NewFieldError("scope", scopeText)
}

func (t Target) Scope() Scope { return t.scope }
func (t Target) ID() string   { return t.id }
func (t Target) IsZero() bool { return t.id == "" || !t.scope.IsValid() }
func (t Target) IsChat() bool { return t.scope == ScopeChat }
func (t Target) IsEval() bool { return t.scope == ScopeEvaluation }

// Columns renders the Target into its (scope, chat_id, evaluation_id) storage columns.
func (t Target) Columns() (scope string, chatID, evaluationID null.String) {
	switch t.scope {
	case ScopeChat:
		chatID = null.StringFrom(t.id)
	case ScopeEvaluation:
		evaluationID = null.StringFrom(t.id)
	}
	return string(t.scope), chatID, evaluationID
}

// TargetFromColumns rebuilds a Target, rejecting rows whose scope disagrees with the populated key.
func TargetFromColumns(scope string, chatID, evaluationID null.String) (Target, error) {
	switch Scope(scope) {
	case ScopeChat:
		if chatID.Valid && chatID.String != "" && !evaluationID.Valid {
			return ChatTarget(chatID.String), nil
		}
	case ScopeEvaluation:
		if evaluationID.Valid && evaluationID.String != "" && !chatID.Valid {
			return EvaluationTarget(evaluationID.String), nil
		}
	}
	return Target{}, errScopeMismatch
}

type targetJSON struct {
	Scope        Scope   `json:"scope"`
	ChatID       *string `json:"chat_id"`
	EvaluationID *string `json:"evaluation_id"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	tj := targetJSON{Scope: t.scope}
	switch t.scope {
	case ScopeChat:
		tj.ChatID = &t.id
	case ScopeEvaluation:
		tj.EvaluationID = &t.id
	}
	return json.Marshal(tj)
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var tj targetJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return err
	}
	var chatID, evalID null.String
	if tj.ChatID != nil {
		chatID = null.StringFrom(*tj.ChatID)
	}
	if tj.EvaluationID != nil {
		evalID = null.StringFrom(*tj.EvaluationID)
	}
	target, err := TargetFromColumns(string(tj.Scope), chatID, evalID)
	if err != nil {
		return err
	}
	*t = target
	return nil
}
