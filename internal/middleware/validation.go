package middleware

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/cleanly/booking-api/pkg/errors"
)

// ValidationConfig represents validation configuration
type ValidationConfig struct {
	CustomValidators    map[string]validator.Func
	CustomErrorMessages map[string]string
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomErrorMessages: map[string]string{
			"required": "is required",
			"min":      "is too short",
			"max":      "exceeds the maximum",
			"oneof":    "is not an allowed value",
			"uuid":     "must be a uuid",
		},
	}
}

var (
	configureOnce sync.Once
	messages      = DefaultValidationConfig().CustomErrorMessages
)

// ConfigureValidator makes gin's validator report json field names and
// registers custom validators. Only the first call takes effect.
func ConfigureValidator(config ValidationConfig) {
	configureOnce.Do(func() {
		if config.CustomErrorMessages != nil {
			messages = config.CustomErrorMessages
		}
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		for tag, fn := range config.CustomValidators {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// BindingError turns a request binding failure into a validation error with
// a client-facing message.
func BindingError(err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msg := messages[e.Tag()]
			if msg == "" {
				msg = fmt.Sprintf("failed on %s", e.Tag())
			}
			parts = append(parts, fieldPath(e.Namespace())+" "+msg)
		}
		return errors.Validation(strings.Join(parts, "; "))
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.Is(err, io.EOF):
		return errors.Validation("request body is required")
	case stderrors.As(err, &syntaxErr):
		return errors.Validation("request body is not valid JSON")
	case stderrors.As(err, &typeErr):
		return errors.Validationf("%s has the wrong type", typeErr.Field)
	default:
		return errors.Validation("invalid request body")
	}
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
