package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidationError lists the request fields that failed validation. Nothing is
// sent to the backend when a request is invalid.
type ValidationError struct {
	Operation string
	Fields    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("api: invalid %s request: %s", e.Operation, strings.Join(e.Fields, "; "))
}

func validateRequest(op string, req any) error {
	if req == nil {
		return nil
	}
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("api: validating %s request: %w", op, err)
	}
	ve := &ValidationError{Operation: op}
	for _, fe := range verrs {
		msg := fe.Field() + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		ve.Fields = append(ve.Fields, msg)
	}
	return ve
}
