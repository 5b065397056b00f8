// Package validation wires go-playground/validator into Echo and renders
// its errors as English field messages keyed by JSON name.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/iliyamo/hostel-management/internal/model"
)

const (
	notBlankTag    = "notblank"
	categoryTag    = "complaint_category"
	paymentModeTag = "payment_mode"
)

// Validator implements echo.Validator.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New returns a Validator with English messages and the hostel custom
// tags registered.
func New() *Validator {
	v := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, notBlank)
	_ = v.RegisterValidation(categoryTag, oneOf(model.ComplaintCategories...))
	_ = v.RegisterValidation(paymentModeTag, oneOf(model.PaymentCash, model.PaymentUPI, model.PaymentBank))

	noop := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, categoryTag, paymentModeTag} {
		_ = v.RegisterTranslation(tag, trans, noop, translateCustom)
	}
	return &Validator{validate: v, translator: trans}
}

// Validate runs struct validation on i.
func (v *Validator) Validate(i any) error { return v.validate.Struct(i) }

// Fields turns a validation failure into field -> message.  It returns
// nil when err is not a validation failure.
func (v *Validator) Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(v.translator)
	}
	return out
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case categoryTag:
		return fe.Field() + " must be one of " + strings.Join(model.ComplaintCategories, ", ")
	case paymentModeTag:
		return fe.Field() + " must be cash, upi or bank"
	}
	return fe.Error()
}

func notBlank(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	return ok && strings.TrimSpace(s) != ""
}

func oneOf(values ...string) validator.Func {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return func(fl validator.FieldLevel) bool {
		return set[strings.ToLower(fl.Field().String())]
	}
}
