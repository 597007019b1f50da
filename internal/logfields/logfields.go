package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyDomain     = "domain"
	KeyBuildID    = "build_id"
	KeyModule     = "module"
	KeyPath       = "path"
	KeyPage       = "page"
	KeyDurationMS = "duration_ms"
	KeyCause      = "cause"
	KeyClients    = "clients"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Domain(d string) slog.Attr       { return slog.String(KeyDomain, d) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Module(id string) slog.Attr      { return slog.String(KeyModule, id) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Page(p string) slog.Attr         { return slog.String(KeyPage, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Cause(c string) slog.Attr        { return slog.String(KeyCause, c) }
func Clients(n int) slog.Attr         { return slog.Int(KeyClients, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
