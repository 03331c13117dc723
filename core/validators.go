package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)

// fieldMessages override the stock english messages. {0} is the tag parameter.
var fieldMessages = []struct {
	tag, text string
}{
	{"required", "this field is required"},
	{"required_with", "this field is required"},
	{"oneof", "select a valid choice"},
	{"max", "ensure this value has at most {0} characters"},
	{"email", "enter a valid email address"},
	{"eqfield", "the two password fields didn't match"},
}

// InitValidators registers the shared tags & messages used by every request payload.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// report fields under their JSON names
	validate.RegisterTagNameFunc(jsonFieldName)

	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	RegisterCustomTranslation(validate, translator, "username", "only letters, digits and @/./+/-/_ characters are allowed")

	for _, m := range fieldMessages {
		RegisterCustomTranslation(validate, translator, m.tag, m.text, true)
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// RegisterCustomTranslation sets the message reported for tag. Pass override to replace a stock message.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	replace := len(override) > 0 && override[0]
	register := func(t ut.Translator) error { return t.Add(tag, text, replace) }
	translate := func(t ut.Translator, fe validator.FieldError) string {
		msg, err := t.T(tag, fe.Param())
		if err != nil {
			return text
		}
		return msg
	}
	_ = validate.RegisterTranslation(tag, translator, register, translate)
}
