package mutation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ramy-dje/madar-dashboard-sub000/pkg/models"
)

// MinPasswordLength is the shortest accepted folder access password.
const MinPasswordLength = 8

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their JSON name, the way the form shows them.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// ValidationError lists field-level failures. It is returned before any request is sent.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// AsValidationError checks if an error is a ValidationError and returns it.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// check runs struct tag validation followed by the rules tags cannot express.
func check(in interface{}, custom func(*ValidationError)) error {
	ve := &ValidationError{}
	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			ve.add(fe.Field(), describe(fe))
		}
	}
	if custom != nil {
		custom(ve)
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Field() == "accessPassword" {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return "must not be empty"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// createFolderRules applies the protected-folder password rule.
func createFolderRules(in *CreateFolderInput) func(*ValidationError) {
	return func(ve *ValidationError) {
		if in.Accessibility == models.AccessProtected && in.AccessPassword == "" {
			ve.add("accessPassword", "is required for a protected folder")
		}
	}
}

// updateFolderRules requires a password when a folder that has none becomes protected.
func updateFolderRules(in *UpdateFolderInput) func(*ValidationError) {
	return func(ve *ValidationError) {
		if in.Accessibility == nil || *in.Accessibility != models.AccessProtected || in.Current == models.AccessProtected {
			return
		}
		if in.AccessPassword == nil || *in.AccessPassword == "" {
			ve.add("accessPassword", "is required for a protected folder")
		}
	}
}

func permissionRule(field string, p models.Permission) func(*ValidationError) {
	return func(ve *ValidationError) {
		if !p.Valid() {
			ve.add(field, "must be one of: admin read write")
		}
	}
}
