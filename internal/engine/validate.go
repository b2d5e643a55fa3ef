package engine

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// requestValidate is shared by every Engine; validator caches struct
// metadata and is safe for concurrent use.
var requestValidate = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so CLI and HTTP callers recognize them.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest trims the text and checks the request's tags. It returns a
// RuntimeError with code INVALID_REQUEST naming each bad field.
func validateRequest(req *Request) error {
	req.Text = strings.TrimSpace(req.Text)
	req.UserID = strings.TrimSpace(req.UserID)

	err := requestValidate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RuntimeError{Code: ErrCodeInvalidRequest, Message: err.Error(), Err: err}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	rerr := NewInvalidRequestError(fields)
	rerr.Err = err
	return rerr
}
