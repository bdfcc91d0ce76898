package core_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoria/tutoria/core"
)

func TestValidScore(t *testing.T) {
	tests := []struct {
		score float64
		want  bool
	}{
		{0, true},
		{100, true},
		{42.5, true},
		{99.99, true},
		{0.01, true},
		{-0.01, false},
		{100.01, false},
		{42.125, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, core.ValidScore(tt.score), "ValidScore(%v)", tt.score)
	}
}

func TestIsJSONObject(t *testing.T) {
	assert.True(t, core.IsJSONObject([]byte(`{}`)))
	assert.True(t, core.IsJSONObject([]byte(`{"colors": {"primary": "#123456"}}`)))
	assert.False(t, core.IsJSONObject([]byte(`[]`)))
	assert.False(t, core.IsJSONObject([]byte(`null`)))
	assert.False(t, core.IsJSONObject([]byte(`"text"`)))
	assert.False(t, core.IsJSONObject([]byte(`{"broken"`)))
	assert.False(t, core.IsJSONObject(nil))
}

type sample struct {
	Name   string          `json:"name" validate:"required,notblank"`
	Code   string          `json:"code" validate:"omitempty,alphanum_"`
	Score  float64         `json:"score" validate:"score"`
	Config json.RawMessage `json:"config" validate:"omitempty,jsonobject"`
}

func TestValidator_Struct(t *testing.T) {
	v := core.NewValidator()

	fieldErrors := func(err error) map[string]string {
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "want a *core.ValidationError, got %v", err)
		flds := make(map[string]string, len(vErr.Fields))
		for _, f := range vErr.Fields {
			flds[f.Field] = f.Error
		}
		return flds
	}

	assert.NoError(t, v.Struct(sample{Name: "Algebra", Code: "alg_1", Score: 12.5, Config: json.RawMessage(`{"a": 1}`)}))

	flds := fieldErrors(v.Struct(sample{Name: "   ", Code: "no-dash", Score: 120, Config: json.RawMessage(`[1]`)}))
	assert.Equal(t, map[string]string{
		"name":   "this field cannot be blank",
		"code":   "only alphanumeric characters and underscores are allowed",
		"score":  "score must be between 0 and 100 with at most two decimal places",
		"config": "must be a JSON object",
	}, flds)

	flds = fieldErrors(v.Struct(sample{}))
	assert.Equal(t, "this field is required", flds["name"])
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Hello World", core.CleanString("  Hello World \n"))
	assert.Equal(t, "hello", core.CleanString(" HeLLo ", true))
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want json.RawMessage
	}{
		{raw: "", want: nil},
		{raw: "null", want: nil},
		{raw: " null\n", want: nil},
		{raw: ` {"a": 1} `, want: json.RawMessage(`{"a": 1}`)},
		{raw: "[]", want: json.RawMessage(`[]`)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, core.CleanJSON(json.RawMessage(tt.raw)))
		})
	}
}
