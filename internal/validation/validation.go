// Package validation runs the batch field checks that gate a BAST submission
// and an invoice upload. Every check runs; the result lists all failing
// fields keyed by their JSON name.
package validation

import (
	"reflect"
	"sort"
	"strings"

	"bastportal/internal/apperror"

	"github.com/go-playground/validator/v10"
)

// Error codes used as field messages.
const (
	Required       = "required"
	InvalidEmail   = "invalid_email"
	InvalidValue   = "invalid_value"
	MustBePositive = "must_be_positive"
	OutOfRange     = "out_of_range"
	NotFound       = "not_found"
	WrongRole      = "wrong_role"
	MustBeAfter    = "must_be_after"
	Duplicate      = "duplicate"
)

// Errors maps field name to error code. It matches apperror.ErrValidation.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e Errors) Is(target error) bool { return target == apperror.ErrValidation }

// Add records code for field unless the field already has an error.
func (e Errors) Add(field, code string) {
	if _, ok := e[field]; !ok {
		e[field] = code
	}
}

// Has reports whether field failed.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Err returns e as an error, or nil when nothing failed.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Field returns a single-field validation error.
func Field(field, code string) error {
	return Errors{field: code}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// structErrors runs the validate tags of s into errs.
func structErrors(s any, errs Errors) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs.Add("_", InvalidValue)
		return
	}
	for _, fe := range verrs {
		errs.Add(fieldName(fe.Namespace()), codeFor(fe.Tag()))
	}
}

// fieldName drops the root struct name from a validator namespace, so
// "Bast.items[0].pekerjaan" becomes "items[0].pekerjaan".
func fieldName(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func codeFor(tag string) string {
	switch tag {
	case "required", "required_if", "min":
		return Required
	case "email":
		return InvalidEmail
	case "gte", "lte":
		return OutOfRange
	default:
		return InvalidValue
	}
}
