package roster

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/halaqat/core"
)

var (
	courseTypeTag  = "coursetype"
	courseTypeText = "invalid course type"

	genderTag  = "gender"
	genderText = "invalid gender"

	statusTag  = "studentstatus"
	statusText = "invalid student status"
)

// InitValidators registers the validators of this package.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseTypeTag, func(fl validator.FieldLevel) bool {
		return CourseType(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, courseTypeTag, courseTypeText)

	_ = validate.RegisterValidation(genderTag, func(fl validator.FieldLevel) bool {
		return Gender(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, genderTag, genderText)

	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return StudentStatus(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}
