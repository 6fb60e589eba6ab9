package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/infirmary/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// В ошибках используем имена полей из JSON, их видит пользователь CLI
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(sanitaryRestDates, models.SanitaryRest{})
	return v
}

// sanitaryRestDates проверяет, что справка не заканчивается раньше, чем начинается.
// Даты в формате 2006-01-02 сравниваются лексикографически.
func sanitaryRestDates(sl validator.StructLevel) {
	rest, ok := sl.Current().Interface().(models.SanitaryRest)
	if !ok || rest.StartDate == "" || rest.EndDate == "" {
		return
	}
	if rest.EndDate < rest.StartDate {
		sl.ReportError(rest.EndDate, "end_date", "EndDate", "gtefield", "start_date")
	}
}

// ValidatePayload decodes raw into the domain struct of entityType and checks it.
// Unknown fields are rejected so typos do not silently disappear.
func ValidatePayload(entityType models.EntityType, raw json.RawMessage) error {
	target, ok := models.NewPayload(entityType)
	if !ok {
		return models.NewValidationError("type", "unknown entity type %q", entityType)
	}

	if err := decodeObject(raw, target); err != nil {
		return err
	}

	return Struct(target)
}

// Struct validates an already decoded domain struct
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return models.NewValidationError(fe.Field(), "%s", describe(fe))
	}
	return models.NewValidationError("", "%v", err)
}

// ValidateOperation проверяет операцию перед постановкой в очередь
func ValidateOperation(op *models.PendingOperation) error {
	if op == nil {
		return models.NewValidationError("operation", "is nil")
	}
	if !op.EntityType.Valid() {
		return models.NewValidationError("entity_type", "unknown entity type %q", op.EntityType)
	}
	if op.EntityID == "" {
		return models.NewValidationError("entity_id", "cannot be empty")
	}
	if !op.Kind.Valid() {
		return models.NewValidationError("kind", "unknown operation kind %q", op.Kind)
	}
	if op.BaseVersion < 0 {
		return models.NewValidationError("base_version", "cannot be negative")
	}

	if op.Kind == models.OpDelete {
		if len(op.Payload) > 0 && !json.Valid(op.Payload) {
			return models.NewValidationError("payload", "is not valid JSON")
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(op.Payload, &obj); err != nil {
		return models.NewValidationError("payload", "must be a JSON object: %v", err)
	}
	return nil
}

func decodeObject(raw json.RawMessage, target any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.NewValidationError("payload", "cannot be empty")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return models.NewValidationError("payload", "%v", err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must not be before %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte", "gt", "lte":
		return fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed on %q", fe.Tag())
}
