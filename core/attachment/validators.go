package attachment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/tutoria/tutoria/core"
)

var (
	scopeTag  = "scope"
	scopeText = "scope must be one of chat or evaluation"
)

// InitValidators registers the attachment validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(scopeTag, scopeValidation)
	core.RegisterCustomTranslation(validate, translator, scopeTag, scopeText)
}

func scopeValidation(fl validator.FieldLevel) bool {
	return Scope(fl.Field().String()).IsValid()
}
