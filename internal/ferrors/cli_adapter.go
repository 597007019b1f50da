package ferrors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// CLIAdapter handles error presentation and exit code determination for the
// one-shot commands. Dev mode never exits through this path.
type CLIAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIAdapter creates a new CLI error adapter.
func NewCLIAdapter(verbose bool, logger *slog.Logger) *CLIAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	switch classified.Category() {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryTransform:
		return 3 // Bad source input
	case CategoryIO, CategoryManifest:
		return 11 // Build output error
	case CategoryOrchestration, CategoryDaemon, CategoryRuntime:
		return 12 // Runtime error
	case CategoryInternal:
		return 10
	default:
		return 1
	}
}

// FormatError formats an error for user-facing display.
func (a *CLIAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if classified.IsCategory(CategoryTransform) {
		file, _ := classified.Context().GetString("file")
		line, _ := classified.Context().Get("line")
		col, _ := classified.Context().Get("col")
		return fmt.Sprintf("%s:%v:%v: %s", file, line, col, classified.Message())
	}
	if a.verbose {
		return classified.Error()
	}
	return fmt.Sprintf("Error: %s", classified.Message())
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	a.logError(err)
	fmt.Fprintf(os.Stderr, "%s\n", a.FormatError(err))
	os.Exit(a.ExitCodeFor(err))
}

func (a *CLIAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	level := slog.LevelError
	switch classified.Severity() {
	case SeverityInfo:
		level = slog.LevelInfo
	case SeverityWarning:
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{slog.String("category", string(classified.Category()))}
	if classified.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	a.logger.LogAttrs(context.Background(), level, classified.Message(), attrs...)
}
