package book

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so details match the request payload
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags of s and converts failures to a
// ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validateCreate normalises in and checks it.
func validateCreate(in *CreateInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = normalizeISBN(in.ISBN)
	return validateStruct(in)
}

// validateUpdate normalises in and checks it. A present title or author must
// not be blank.
func validateUpdate(in *UpdateInput) error {
	in.Title = trimPtr(in.Title)
	in.Author = trimPtr(in.Author)
	in.ISBN = normalizeISBN(in.ISBN)

	var blank []FieldError
	if in.Title != nil && *in.Title == "" {
		blank = append(blank, FieldError{Field: "title", Message: "title must not be empty"})
	}
	if in.Author != nil && *in.Author == "" {
		blank = append(blank, FieldError{Field: "author", Message: "author must not be empty"})
	}

	err := validateStruct(in)
	var verr *ValidationError
	switch {
	case err == nil && len(blank) == 0:
		return nil
	case err == nil:
		return &ValidationError{Fields: blank}
	case errors.As(err, &verr):
		verr.Fields = append(blank, verr.Fields...)
		return verr
	default:
		return err
	}
}
