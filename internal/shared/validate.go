package shared

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs struct validation and converts the first failure into a
// ValidationError naming the field.
func ValidateStruct(v *validator.Validate, target any) error {
	err := v.Struct(target)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return MissingField(fe.Field())
		default:
			return Invalid(fe.Field(), "field '"+fe.Field()+"' failed "+fe.Tag()+" validation")
		}
	}
	return NewError(ErrValidation, "invalid request")
}
