// Package validation provides request and model validation for promptea,
// built on go-playground/validator with canvas-specific tags.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// Validator interface for custom validation
// PRINCIPLES:
// - ISP: Simple interface with single method
// - DIP: Depend on interface, not concrete types
type Validator interface {
	Validate() error
}

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	// validate is the shared validator instance
	validate *validator.Validate

	idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)
)

func init() {
	validate = validator.New()

	validate.RegisterValidation("node_type", validateNodeType)
	validate.RegisterValidation("model_id", validateModelID)
	validate.RegisterValidation("object_id", validateObjectID)

	// Report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// Struct validates s against its `validate` tags, then its own Validate
// method when it implements Validator.
func Struct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}
	if v, ok := s.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// Var validates a single value against a tag expression
func Var(field string, value interface{}, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			out := formatValidationErrors(verrs)
			for i := range out {
				out[i].Field = field
			}
			return out
		}
		return err
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Value:   fe.Value(),
			Message: errorMessage(fe),
		})
	}
	return out
}

// errorMessage returns a human-readable error message
func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "node_type":
		return fmt.Sprintf("must be a node type (%s)", strings.Join(graph.NodeTypes(), ", "))
	case "model_id":
		return fmt.Sprintf("must be a supported model (%s)", strings.Join(graph.SupportedModels, ", "))
	case "object_id":
		return "must be a valid identifier (alphanumeric, underscore, hyphen)"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

func validateNodeType(fl validator.FieldLevel) bool {
	_, ok := graph.LookupKind(graph.NodeType(fl.Field().String()))
	return ok
}

func validateModelID(fl validator.FieldLevel) bool {
	return graph.IsSupportedModel(fl.Field().String())
}

func validateObjectID(fl validator.FieldLevel) bool {
	return idPattern.MatchString(fl.Field().String())
}
