package shopapi

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/plantitas/plantitas/pkg/types"
)

var (
	shopValidator *validator.Validate
	validatorOnce sync.Once
)

// V returns the shared validator with the shop rules registered.
func V() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		v.RegisterCustomTypeFunc(nullableStringValue, types.NullableString{})
		_ = v.RegisterValidation("notBlank", notBlank)
		_ = v.RegisterValidation("paymentMethod", paymentMethod)
		shopValidator = v
	})
	return shopValidator
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func nullableStringValue(v reflect.Value) any {
	if ns, ok := v.Interface().(types.NullableString); ok {
		return ns.String()
	}
	return nil
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func paymentMethod(fl validator.FieldLevel) bool {
	return slices.Contains(PaymentMethods, fl.Field().String())
}

// ValidationError carries per-field messages keyed by JSON field name, the same shape the
// backend uses for its 400 responses.
type ValidationError struct {
	Fields map[string][]string
}

// FieldMessages returns the messages keyed by field.
func (e *ValidationError) FieldMessages() map[string][]string {
	return e.Fields
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return strings.Join(parts, "; ")
}

// Validate checks v against its validate tags and returns a *ValidationError on failure.
func Validate(v any) error {
	err := V().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: map[string][]string{}}
	for _, fe := range verrs {
		key := fieldPath(fe.Namespace())
		out.Fields[key] = append(out.Fields[key], message(fe))
	}
	return out
}

// fieldPath drops the root struct name: "OrderCreate.delivery.address" -> "delivery.address".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notBlank":
		return "This field is required."
	case "required_if":
		if fe.Field() == "address" {
			return "Address is required for delivery."
		}
		return "This field is required."
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("At least %s item(s) required.", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "gt":
		return fmt.Sprintf("Ensure this value is greater than %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	case "paymentMethod":
		return fmt.Sprintf("%q is not a valid choice.", fe.Value())
	}
	return fmt.Sprintf("Failed on %s.", fe.Tag())
}
