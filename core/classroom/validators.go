package classroom

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/tutoria/tutoria/core"
)

var (
	studentStatusTag  = "student_status"
	studentStatusText = "status must be one of invited, active or removed"
)

// InitValidators registers the classroom validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(studentStatusTag, studentStatusValidation)
	core.RegisterCustomTranslation(validate, translator, studentStatusTag, studentStatusText)
}

func studentStatusValidation(fl validator.FieldLevel) bool {
	return StudentStatus(fl.Field().String()).IsValid()
}
