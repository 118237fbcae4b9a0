package client

import (
	"fmt"
	"strings"

	apperrors "github.com/bid2build/bid2build/pkg/util"
)

// ResponseError is a definitive non-success answer from the API: a non-2xx status or a body
// with success false.
type ResponseError struct {
	Status  int
	Code    string
	Message string
	Errors  []apperrors.FieldError
}

// RegistrationError is the ResponseError returned by Register.
type RegistrationError = ResponseError

func (e *ResponseError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("api error (%d): %s", e.Status, strings.Join(e.Lines(), "; "))
	}
	if e.Message != "" {
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

// Lines renders every field error as "field: message".
func (e *ResponseError) Lines() []string {
	lines := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		lines = append(lines, fe.String())
	}
	return lines
}

// TransportError means no usable response was received: the request failed or the body was not JSON.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
