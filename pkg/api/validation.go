package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"taskboard-api/pkg/task"
	"taskboard-api/utils"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("priority", PriorityValidator)
	validate.RegisterValidation("duedate", DueDateValidator)
	return validate
}

// PriorityValidator accepts low, medium and high.
func PriorityValidator(fl validator.FieldLevel) bool {
	return task.Priority(fl.Field().String()).Valid()
}

// DueDateValidator accepts an empty string, a calendar date or an RFC 3339
// timestamp.
func DueDateValidator(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	return value == "" || utils.ParseDate(value) != nil
}

// decodeInput unmarshals raw into T and validates it. Both failures come back
// as *task.ValidationError.
func decodeInput[T any](validate *validator.Validate, raw json.RawMessage) (T, error) {
	var input T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &input); err != nil {
			return input, &task.ValidationError{Message: "Invalid input: " + err.Error()}
		}
	}
	if err := validate.Struct(input); err != nil {
		return input, validationError(err)
	}
	return input, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &task.ValidationError{Message: err.Error()}
	}
	fieldErr := fieldErrs[0]
	return &task.ValidationError{Field: fieldErr.Field(), Message: fieldMessage(fieldErr)}
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		if fieldErr.Field() == "title" {
			return "Title is required"
		}
		return fmt.Sprintf("%s is required", fieldErr.Field())
	case "priority":
		return fmt.Sprintf("Invalid enum value. Expected 'low' | 'medium' | 'high', received '%v'", fieldErr.Value())
	case "duedate":
		return fmt.Sprintf("Invalid date: %v", fieldErr.Value())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", fieldErr.Field(), fieldErr.Tag())
	}
}

// validateUpdate checks the optional fields of an update, which struct tags
// cannot reach.
func validateUpdate(validate *validator.Validate, input task.UpdateTaskInput) error {
	nonNullable := []struct {
		name string
		set  bool
		null bool
		kind string
	}{
		{"title", input.Title.Set, input.Title.Null, "string"},
		{"description", input.Description.Set, input.Description.Null, "string"},
		{"completed", input.Completed.Set, input.Completed.Null, "boolean"},
		{"priority", input.Priority.Set, input.Priority.Null, "string"},
	}
	for _, field := range nonNullable {
		if field.set && field.null {
			return &task.ValidationError{Field: field.name, Message: fmt.Sprintf("%s: Expected %s, received null", field.name, field.kind)}
		}
	}

	if input.Title.Set {
		if err := validate.Var(input.Title.Value, "required"); err != nil {
			return &task.ValidationError{Field: "title", Message: "Title is required"}
		}
	}
	if input.Priority.Set {
		if err := validate.Var(string(input.Priority.Value), "priority"); err != nil {
			return &task.ValidationError{
				Field:   "priority",
				Message: fmt.Sprintf("Invalid enum value. Expected 'low' | 'medium' | 'high', received '%s'", input.Priority.Value),
			}
		}
	}
	if input.DueDate.Set && input.DueDate.Value != nil {
		if err := validate.Var(*input.DueDate.Value, "duedate"); err != nil {
			return &task.ValidationError{Field: "dueDate", Message: "Invalid date: " + *input.DueDate.Value}
		}
	}
	return nil
}
