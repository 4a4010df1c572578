package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a deployment error by the stage that produced it.
type ErrorClass string

const (
	// ErrorClassMaterialization indicates a bad or missing local
	// resource referenced by $fileContent or $datasetCsv, or a
	// malformed value directive operand.
	ErrorClassMaterialization ErrorClass = "materialization"

	// ErrorClassUnresolvedReference indicates an exact-pattern
	// ${id:...} reference with no match in the registry or the remote
	// service.
	ErrorClassUnresolvedReference ErrorClass = "unresolved_reference"

	// ErrorClassValidation indicates an entity body missing required
	// fields, or a grammar violation in the document.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassRemoteService indicates a failed create, update,
	// delete or lookup call against the remote service.
	ErrorClassRemoteService ErrorClass = "remote_service"
)

// DeployError is a classified error with entity context.
type DeployError struct {
	// Class is the error classification.
	Class ErrorClass

	// Message is the human-readable error message.
	Message string

	// Kind is the entity kind the error belongs to, if known.
	Kind string

	// Name is the entity name the error belongs to, if known.
	Name string

	// Path is the collection path involved, if applicable.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DeployError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Kind != "" || e.Name != "" {
		msg += fmt.Sprintf(" (entity=%s %s)", e.Kind, e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DeployError) Unwrap() error {
	return e.Err
}

// WithEntity adds entity context to the error.
func (e *DeployError) WithEntity(kind, name string) *DeployError {
	e.Kind = kind
	e.Name = name
	return e
}

// WithPath adds collection path context to the error.
func (e *DeployError) WithPath(path string) *DeployError {
	e.Path = path
	return e
}

// NewMaterializationError creates a materialization-class error.
func NewMaterializationError(message string, err error) *DeployError {
	return &DeployError{Class: ErrorClassMaterialization, Message: message, Err: err}
}

// NewUnresolvedReferenceError creates an unresolved-reference error.
func NewUnresolvedReferenceError(message string, err error) *DeployError {
	return &DeployError{Class: ErrorClassUnresolvedReference, Message: message, Err: err}
}

// NewValidationError creates a validation-class error.
func NewValidationError(message string, err error) *DeployError {
	return &DeployError{Class: ErrorClassValidation, Message: message, Err: err}
}

// NewRemoteServiceError creates a remote-service-class error.
func NewRemoteServiceError(message string, err error) *DeployError {
	return &DeployError{Class: ErrorClassRemoteService, Message: message, Err: err}
}

func errorClassIs(err error, class ErrorClass) bool {
	var e *DeployError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsMaterialization reports whether err is materialization-class.
func IsMaterialization(err error) bool {
	return errorClassIs(err, ErrorClassMaterialization)
}

// IsUnresolvedReference reports whether err is unresolved-reference-class.
func IsUnresolvedReference(err error) bool {
	return errorClassIs(err, ErrorClassUnresolvedReference)
}

// IsValidation reports whether err is validation-class.
func IsValidation(err error) bool {
	return errorClassIs(err, ErrorClassValidation)
}

// IsRemoteService reports whether err is remote-service-class.
func IsRemoteService(err error) bool {
	return errorClassIs(err, ErrorClassRemoteService)
}

// ClassOf returns the classification of err, or the empty string for
// unclassified errors.
func ClassOf(err error) ErrorClass {
	var e *DeployError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}
