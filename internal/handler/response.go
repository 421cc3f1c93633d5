package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/smartpreach/smartpreach-server/internal/errors"
	"github.com/smartpreach/smartpreach-server/internal/httputil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeBody reads a JSON body into dst and runs struct validation on it.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return apperrors.InvalidRequest("Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.InvalidRequest("Invalid JSON body")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.InvalidRequest("Invalid request")
	}

	first := verrs[0]
	if first.Tag() == "required" {
		return apperrors.MissingRequired(first.Field())
	}
	return apperrors.InvalidInput(first.Field(), "failed "+first.Tag()+" validation")
}
