package catalog

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	tagActivityCategory = "activity_category"
	tagActivityStatus   = "activity_status"
)

// Validator checks admin input against the struct tags of the write models and renders
// violations as English sentences keyed by JSON field name.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator creates a validator with the activity rules registered.
func NewValidator() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterValidations(validate); err != nil {
		return nil, err
	}

	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")

	if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		return nil, err
	}

	for tag, text := range map[string]string{
		tagActivityCategory: "{0} must be a known activity category",
		tagActivityStatus:   "{0} must be one of active, draft, inactive, suspended",
	} {
		if err := registerTranslation(validate, translator, tag, text); err != nil {
			return nil, err
		}
	}

	return &Validator{validate: validate, translator: translator}, nil
}

// RegisterValidations adds the activity rules and JSON field naming to an existing validator,
// e.g. the one behind gin's binding.
func RegisterValidations(validate *validator.Validate) error {
	validate.RegisterTagNameFunc(jsonFieldName)

	rules := map[string]validator.Func{
		tagActivityCategory: func(fl validator.FieldLevel) bool {
			return activitystore.Category(fl.Field().String()).IsValid()
		},
		tagActivityStatus: func(fl validator.FieldLevel) bool {
			return activitystore.Status(fl.Field().String()).IsValid()
		},
	}

	for tag, rule := range rules {
		if err := validate.RegisterValidation(tag, rule); err != nil {
			return err
		}
	}

	return nil
}

// Struct validates input and returns a single human readable error, or nil.
func (v *Validator) Struct(input any) error {
	err := v.validate.Struct(input)
	if err == nil {
		return nil
	}

	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return err
	}

	messages := make([]string, 0, len(violations))
	for _, violation := range violations {
		messages = append(messages, violation.Translate(v.translator))
	}

	return errors.New(strings.Join(messages, "; "))
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) error {
	return validate.RegisterTranslation(tag, translator,
		func(t ut.Translator) error {
			return t.Add(tag, text, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}

			return msg
		},
	)
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")

	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	default:
		return name
	}
}
