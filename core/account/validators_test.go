package account

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejadex/RE-VLab/core"
)

func Test_checkPassword(t *testing.T) {
	tests := []struct {
		name  string
		pwd   string
		attrs []string
		want  string
	}{
		{name: "too short", pwd: "Ab-12", want: pwdMinLenTag},
		{name: "entirely numeric", pwd: "918273645", want: pwdNotAllNumTag},
		{name: "similar to username", pwd: "ada-lovelace", attrs: []string{"adalovelace"}, want: pwdAttrSimTag},
		{name: "similar to email", pwd: "Hero@Revlab", attrs: []string{"", "hero@revlab.test"}, want: pwdAttrSimTag},
		{name: "common", pwd: "Password123", want: pwdNoCommonTag},
		{name: "common lowercase", pwd: "qwertyuiop", want: pwdNoCommonTag},
		{name: "valid", pwd: "Blue-Harbor-42", attrs: []string{"hero", "Hero", "Student", "hero@revlab.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkPassword(tt.pwd, tt.attrs...))
		})
	}
}

func TestNewAccount_passwordPolicy(t *testing.T) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	na := NewAccount{
		Username:  "hero",
		FirstName: "Hero",
		LastName:  "Student",
		Email:     "hero@revlab.test",
		Password1: "Blue-Harbor-42",
		Password2: "Blue-Harbor-43",
	}
	fieldErrs := func(err error) map[string]string {
		require.Error(t, err)
		vErrs, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		errs := make(map[string]string, len(vErrs))
		for _, fe := range vErrs {
			errs[fe.Field()] = fe.Translate(translator)
		}
		return errs
	}

	errs := fieldErrs(validate.Struct(na))
	assert.Contains(t, errs, "password2")

	na.Password2 = na.Password1
	assert.NoError(t, validate.Struct(na))

	na.Password1, na.Password2 = "abc", "abc"
	assert.Equal(t, map[string]string{"password1": pwdMinLenText}, fieldErrs(validate.Struct(na)))

	na.Password1, na.Password2 = "hero-student", "hero-student"
	assert.Equal(t, map[string]string{"password1": pwdAttrSimText}, fieldErrs(validate.Struct(na)))
}
