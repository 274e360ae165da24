package utils

import "fmt"

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// ConfigError represents an invalid piece of configuration: a strategy,
// detector or modifier definition that cannot be used as declared.
type ConfigError struct {
	Component string
	Message   string
}

// Error returns the error message string.
func (e *ConfigError) Error() string {
	if e.Component == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

// NewConfigError creates a new ConfigError for a named component.
func NewConfigError(component, message string) error {
	return &ConfigError{Component: component, Message: message}
}

// NewConfigErrorf creates a new ConfigError with a formatted message.
func NewConfigErrorf(component, format string, args ...interface{}) error {
	return &ConfigError{Component: component, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError represents a lookup of a resource that does not exist,
// such as switching to an unregistered strategy.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error returns the error message string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError for a resource and id.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}
