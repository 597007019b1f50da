package ferrors

import "fmt"

// ClassifiedError is a structured error carrying category, severity, and a
// recommended retry strategy. The whole pipeline reports through this type so
// the CLI and the daemon can route failures without string matching.
type ClassifiedError struct {
	category Category
	severity Severity
	retry    RetryStrategy
	message  string
	cause    error
	context  Context
}

// Error implements the standard error interface.
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

// Unwrap implements Go 1.13+ error unwrapping.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// Category returns the error category.
func (e *ClassifiedError) Category() Category {
	return e.category
}

// Severity returns the error severity.
func (e *ClassifiedError) Severity() Severity {
	return e.severity
}

// RetryStrategy returns the recommended retry strategy.
func (e *ClassifiedError) RetryStrategy() RetryStrategy {
	return e.retry
}

// Message returns the error message without category decoration.
func (e *ClassifiedError) Message() string {
	return e.message
}

// Context returns the structured error context.
func (e *ClassifiedError) Context() Context {
	return e.context
}

// WithContext adds context to the error and returns a new error.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	clone := *e
	clone.context = e.context.Merge(Context{key: value})
	return &clone
}

// Is implements error comparison for errors.Is.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// IsCategory checks if the error belongs to a specific category.
func (e *ClassifiedError) IsCategory(category Category) bool {
	return e.category == category
}

// IsFatal checks if the error is fatal (should stop execution).
func (e *ClassifiedError) IsFatal() bool {
	return e.severity == SeverityFatal
}

// CanRetry checks if the error allows retry operations.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry != RetryNever && e.retry != RetryUserAction
}

// AsClassified attempts to convert an error to a ClassifiedError.
func AsClassified(err error) (*ClassifiedError, bool) {
	if classified, ok := err.(*ClassifiedError); ok {
		return classified, true
	}
	return nil, false
}

// HasCategory checks whether err is a classified error of the given category.
func HasCategory(err error, category Category) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.IsCategory(category)
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal.
func GetCategory(err error) Category {
	if classified, ok := AsClassified(err); ok {
		return classified.Category()
	}
	return CategoryInternal
}

// IsManifestMissing reports whether err signals that no build has published a
// manifest yet. Consumers must treat this as "assets pending", not failure.
func IsManifestMissing(err error) bool {
	return HasCategory(err, CategoryManifest)
}
