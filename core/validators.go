package core

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	scoreTag  = "score"
	scoreText = "score must be between 0 and 100 with at most two decimal places"

	jsonObjectTag  = "jsonobject"
	jsonObjectText = "must be a JSON object"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// ScoreMin and ScoreMax bound every stored score (human evaluations and progress rows).
const (
	ScoreMin = 0
	ScoreMax = 100
)

// Validator bundles the struct validator and the translator used to render its errors.
type Validator struct {
	Validate   *validator.Validate
	Translator ut.Translator
}

// NewValidator instantiates the validator for use.
// inits registers the validators of domain packages (e.g. user.InitValidators).
func NewValidator(inits ...func(*validator.Validate, ut.Translator)) *Validator {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	InitValidators(validate, translator)
	for _, init := range inits {
		init(validate, translator)
	}
	return &Validator{Validate: validate, Translator: translator}
}

// Struct validates s and reports failures as a *ValidationError with translated field messages.
func (v *Validator) Struct(s interface{}) error {
	err := v.Validate.Struct(s)
	if err == nil {
		return nil
	}
	if vErrs, ok := err.(validator.ValidationErrors); ok {
		return v.Translate(vErrs)
	}
	return err
}

// Translate converts validator errors into a *ValidationError.
func (v *Validator) Translate(vErrs validator.ValidationErrors) error {
	flds := make([]FieldError, 0, len(vErrs))
	for _, fe := range vErrs {
		flds = append(flds, FieldError{Field: fe.Field(), Error: fe.Translate(v.Translator)})
	}
	return NewValidationError(nil, flds...)
}

// InitValidators registers the global validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(scoreTag, scoreValidation)
	RegisterCustomTranslation(validate, translator, scoreTag, scoreText)

	_ = validate.RegisterValidation(jsonObjectTag, jsonObjectValidation)
	RegisterCustomTranslation(validate, translator, jsonObjectTag, jsonObjectText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// ValidScore reports whether s is within [ScoreMin, ScoreMax] with at most two decimal places.
func ValidScore(s float64) bool {
	if math.IsNaN(s) || s < ScoreMin || s > ScoreMax {
		return false
	}
	cents := s * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

// IsJSONObject reports whether raw holds a JSON object.
func IsJSONObject(raw []byte) bool {
	var obj map[string]interface{}
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func scoreValidation(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		return ValidScore(fl.Field().Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ValidScore(float64(fl.Field().Int()))
	}
	return false
}

// jsonObjectValidation accepts []byte / json.RawMessage fields holding a JSON object.
func jsonObjectValidation(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.Slice {
		return false
	}
	return IsJSONObject(fl.Field().Bytes())
}
