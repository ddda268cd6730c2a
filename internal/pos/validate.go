package pos

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

var validate = validator.New()

// Validate checks struct tags on v and returns a VALIDATION error naming
// every failed field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError("%v", err)
	}

	fields := make([]string, 0, len(verrs))
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on %q", fe.StructNamespace(), fe.Tag()))
		details[fe.StructNamespace()] = fe.Tag()
	}
	e := NewValidationError("%s", strings.Join(fields, "; "))
	e.Details = details
	return e
}

// NormalizeName returns s in Unicode NFC with surrounding and repeated
// whitespace collapsed. Catalog names and receipt snapshots pass through
// it so the same product name compares equal across devices.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
