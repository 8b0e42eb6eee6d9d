package workers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
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

// ValidatePayload checks a request or response payload against its schema tags.
// Slices are validated element by element.
func ValidatePayload(v any) error {
	var err error
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct:
		err = validate.Struct(rv.Interface())
	case reflect.Slice, reflect.Array:
		err = validate.Var(rv.Interface(), "dive")
	default:
		return nil
	}
	if err == nil {
		return nil
	}
	return errors.New(describe(err))
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Drop the root type name so messages read "searchResults[0].url".
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 && !strings.HasPrefix(field, "[") {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
