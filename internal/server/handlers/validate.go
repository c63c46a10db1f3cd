package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roomgate/roomgate/internal/core"
	apperrors "github.com/roomgate/roomgate/internal/errors"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("roomname", func(fl validator.FieldLevel) bool {
		return core.ValidRoomName(fl.Field().String())
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates it. Decoding failures
// are invalid input; constraint failures are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil && !stderrors.Is(err, io.EOF) {
		return apperrors.WrapInvalidInput(r.Context(), err, "Request body must be valid JSON")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &core.ValidationError{Message: err.Error()}
	}

	first := fieldErrs[0]
	return &core.ValidationError{Field: first.Field(), Message: constraintMessage(first)}
}

func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "roomname":
		return fmt.Sprintf("may only contain letters, digits, '_' and '-' (max %d)", core.MaxRoomNameLength)
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}
