// Package errors maps service failures onto HTTP-facing categories.
package errors

import (
	"errors"
	"net/http"
)

// Category classifies a ServiceError for the transport layer.
type Category int

const (
	CategoryGeneralError Category = iota
	// CategoryDataError is invalid client input.
	CategoryDataError
	CategoryUnauthorized
	CategoryForbidden
	CategoryResourceNotFound
	// CategoryDataConflict is a request that conflicts with current state,
	// such as a command issued while another is running.
	CategoryDataConflict
	// CategoryDependencyFailure is a failure of a remote collaborator.
	CategoryDependencyFailure
	CategoryUnavailable
)

var categoryNames = map[Category]string{
	CategoryGeneralError:      "general_error",
	CategoryDataError:         "data_error",
	CategoryUnauthorized:      "unauthorized",
	CategoryForbidden:         "forbidden",
	CategoryResourceNotFound:  "not_found",
	CategoryDataConflict:      "conflict",
	CategoryDependencyFailure: "dependency_failure",
	CategoryUnavailable:       "unavailable",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryGeneralError]
}

var categoryStatus = map[Category]int{
	CategoryGeneralError:      http.StatusInternalServerError,
	CategoryDataError:         http.StatusBadRequest,
	CategoryUnauthorized:      http.StatusUnauthorized,
	CategoryForbidden:         http.StatusForbidden,
	CategoryResourceNotFound:  http.StatusNotFound,
	CategoryDataConflict:      http.StatusConflict,
	CategoryDependencyFailure: http.StatusBadGateway,
	CategoryUnavailable:       http.StatusServiceUnavailable,
}

// ServiceError carries a user-facing Message and the underlying Err, which is
// only logged.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

func (err *ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

func (err *ServiceError) Unwrap() error {
	return err.Err
}

// StatusCode returns the HTTP status for the error's category.
func (err *ServiceError) StatusCode() int {
	if code, ok := categoryStatus[err.Category]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Is reports whether err is a ServiceError of category cat.
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

func newError(cat Category, err error, message string) error {
	if err == nil {
		err = errors.New(message)
	}
	return &ServiceError{Category: cat, Message: message, Err: err}
}

// GeneralError hides err behind a generic message.
func GeneralError(err error) error {
	return newError(CategoryGeneralError, err, "Internal Server Error")
}

func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message)
}

func UnAuthorizedError(err error, message string) error {
	return newError(CategoryUnauthorized, err, message)
}

func ForbiddenError(err error, message string) error {
	return newError(CategoryForbidden, err, message)
}

func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message)
}

func ConflictError(err error, message string) error {
	return newError(CategoryDataConflict, err, message)
}

func DependencyError(err error, message string) error {
	return newError(CategoryDependencyFailure, err, message)
}

func UnavailableError(err error, message string) error {
	return newError(CategoryUnavailable, err, message)
}
