package ferrors

// Builder provides a fluent API for creating ClassifiedError instances.
type Builder struct {
	category Category
	severity Severity
	retry    RetryStrategy
	message  string
	cause    error
	context  Context
}

// NewError creates a new Builder with the specified category and message.
func NewError(category Category, message string) *Builder {
	return &Builder{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		context:  make(Context),
	}
}

// WrapError creates a new Builder that wraps an existing error.
func WrapError(err error, category Category, message string) *Builder {
	b := NewError(category, message)
	b.cause = err
	return b
}

// WithSeverity sets the error severity.
func (b *Builder) WithSeverity(severity Severity) *Builder {
	b.severity = severity
	return b
}

// WithRetry sets the retry strategy.
func (b *Builder) WithRetry(strategy RetryStrategy) *Builder {
	b.retry = strategy
	return b
}

// WithContext adds a context key-value pair.
func (b *Builder) WithContext(key string, value any) *Builder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal.
func (b *Builder) Fatal() *Builder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *Builder) Warning() *Builder {
	return b.WithSeverity(SeverityWarning)
}

// Build creates the final ClassifiedError.
func (b *Builder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors for the pipeline's error taxonomy.

// ConfigError creates a configuration error.
func ConfigError(message string) *Builder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError creates a validation error.
func ValidationError(message string) *Builder {
	return NewError(CategoryValidation, message).Fatal()
}

// TransformError creates a source transform error with file position context.
// Transform errors never crash the process; the source needs fixing.
func TransformError(file string, line, col int, message string) *Builder {
	return NewError(CategoryTransform, message).
		WithRetry(RetryUserAction).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("col", col)
}

// IOError creates a filesystem error. Dev mode retries on the next event.
func IOError(message string) *Builder {
	return NewError(CategoryIO, message).WithRetry(RetryNextEvent)
}

// ManifestMissing creates the error a manifest read yields before any build
// has completed.
func ManifestMissing(path string) *ClassifiedError {
	return NewError(CategoryManifest, "no manifest published yet").
		Warning().
		WithRetry(RetryNextEvent).
		WithContext("path", path).
		Build()
}

// OrchestrationRace creates the error recorded when a dependent build saw the
// manifest advance during its own execution.
func OrchestrationRace(message string) *Builder {
	return NewError(CategoryOrchestration, message).
		Warning().
		WithRetry(RetryNextEvent)
}

// DaemonError creates a daemon lifecycle error.
func DaemonError(message string) *Builder {
	return NewError(CategoryDaemon, message)
}

// InternalError creates an internal error.
func InternalError(message string) *Builder {
	return NewError(CategoryInternal, message)
}

// EventStoreError creates a build-history store error.
func EventStoreError(message string) *Builder {
	return NewError(CategoryEventStore, message).Warning()
}
