package ferrors

import "maps"

// Category represents the broad category of an error for classification and routing.
type Category string

const (
	// CategoryConfig represents user-facing configuration and input errors.
	CategoryConfig     Category = "config"
	CategoryValidation Category = "validation"

	// CategoryTransform represents source-level failures inside the asset
	// pipeline: a stylesheet or script that cannot be parsed. Always
	// recoverable; the dev loop serves the last good output instead.
	CategoryTransform Category = "transform"

	// CategoryIO represents filesystem access failures. Fatal in one-shot
	// builds, retried on the next watch event in dev mode.
	CategoryIO Category = "io"

	// CategoryManifest represents manifest availability problems, most
	// notably reads before any build has published.
	CategoryManifest Category = "manifest"

	// CategoryOrchestration represents ordering violations between the two
	// watch domains, e.g. a content build that observed a manifest version
	// change mid-flight.
	CategoryOrchestration Category = "orchestration"

	CategoryEventStore Category = "eventstore"
	CategoryRuntime    Category = "runtime"
	CategoryDaemon     Category = "daemon"
	CategoryInternal   Category = "internal"
)

// Severity indicates the impact level of an error.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // Stops execution completely
	SeverityError   Severity = "error"   // Fails the current operation
	SeverityWarning Severity = "warning" // Continues with degraded functionality
	SeverityInfo    Severity = "info"    // Informational, no impact
)

// RetryStrategy indicates how an error should be handled in retry scenarios.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"      // Permanent failure, don't retry
	RetryNextEvent  RetryStrategy = "next_event" // Retried implicitly by the next watch event
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"       // Requires user intervention (fix the source)
)

// Context provides structured context for errors.
type Context map[string]any

// Set adds or updates a context value.
func (c Context) Set(key string, value any) Context {
	if c == nil {
		c = make(Context)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c Context) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c Context) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// Merge combines two contexts, with other taking precedence.
func (c Context) Merge(other Context) Context {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(Context)
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
