package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct checks v against its `validate` tags.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return errorToString(v, err)
	}
	return nil
}

func errorToString(input any, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("failed %T validation for field '%s': rule '%s' expected '%s', got '%v'", input, fe.StructField(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return errors.New(strings.Join(parts, "; "))
}
