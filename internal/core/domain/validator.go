package domain

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/nulzo/prism-console/pkg/api"
)

const tagModelForProvider = "model_for_provider"

var (
	validate *validator.Validate
	trans    ut.Translator
	initOnce sync.Once
)

func engine() *validator.Validate {
	initOnce.Do(func() {
		v := validator.New()

		// report json names instead of Go field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		v.RegisterStructValidation(validateRecord, RuleRecord{})
		v.RegisterStructValidation(validateService, ServiceEntry{})

		english := en.New()
		uni := ut.New(english, english)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterTranslation(tagModelForProvider, trans,
			func(t ut.Translator) error {
				return t.Add(tagModelForProvider, "a model must be selected for provider {0}", true)
			},
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(tagModelForProvider, fmt.Sprintf("%q", fe.Param()))
				return msg
			},
		)

		validate = v
	})
	return validate
}

func validateRecord(sl validator.StructLevel) {
	rec := sl.Current().Interface().(RuleRecord)
	if rec.ID.IsZero() {
		sl.ReportError(rec.ID, "uuid", "ID", "required", "")
	}
}

func validateService(sl validator.StructLevel) {
	s := sl.Current().Interface().(ServiceEntry)
	if s.Provider != "" && s.Model == "" {
		sl.ReportError(s.Model, "model", "Model", tagModelForProvider, s.Provider)
	}
}

// Validate checks that r can be sent to the server: it needs an identifier
// and a request model, and every service with a provider needs a model.
func Validate(r RuleRecord) error {
	err := engine().Struct(r)
	if err == nil {
		return nil
	}
	return NewValidationError(ParseValidationError(err))
}

// ValidateGuardrail checks the fields the server requires on a guardrail
// rule.
func ValidateGuardrail(rule api.GuardrailRule) error {
	err := engine().Struct(rule)
	if err == nil {
		return nil
	}
	return NewValidationError(ParseValidationError(err))
}

// ParseValidationError converts validator output into a json-path keyed map.
func ParseValidationError(err error) map[string]string {
	errMap := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			ns := e.Namespace()
			if i := strings.Index(ns, "."); i != -1 {
				ns = ns[i+1:]
			}
			errMap[ns] = e.Translate(trans)
		}
		return errMap
	}

	errMap["record"] = err.Error()
	return errMap
}
