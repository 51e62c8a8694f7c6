package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mhire/liveavatar/internal/apperr"
)

// CustomValidator plugs validator/v10 into echo's c.Validate
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	v := validator.New()
	// Report form field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate returns an InvalidInput error naming the first offending field
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return apperr.New(apperr.InvalidInput, fmt.Sprintf("%s is required", fe.Field()))
		}
		return apperr.New(apperr.InvalidInput, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
	return apperr.Wrap(apperr.InvalidInput, err, "Invalid request")
}
