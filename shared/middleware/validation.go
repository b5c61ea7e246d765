package middleware

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	// Compare decimals numerically so gte/lte work on balances.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})
	return v
}

// fieldMessages holds the wording reported for a field/tag pair.
var fieldMessages = map[string]string{
	"name.required":          "Name is required",
	"name.notblank":          "Name is required",
	"email.required":         "Email is required",
	"email.email":            "Email should be valid",
	"accountNumber.required": "Account number is required",
	"accountNumber.notblank": "Account number is required",
	"balance.required":       "Balance is required",
	"balance.gte":            "Balance must be positive or zero",
	"primaryUserId.required": "Primary user ID is required",
	"userId.required":        "User ID is required",
}

// ValidateRequest returns the violated fields of obj keyed by JSON name, or
// nil when obj is valid. Only the first violation per field is reported.
func ValidateRequest(obj any) map[string]string {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": "Invalid value"}
	}

	violations := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := violations[fe.Field()]; seen {
			continue
		}
		violations[fe.Field()] = getErrorMsg(fe)
	}
	return violations
}

func getErrorMsg(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + fe.Param()
	case "gte":
		return "Value must be greater than or equal to " + fe.Param()
	default:
		return "Invalid value"
	}
}
