package memarchive

import "log/slog"

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithScheme sets the URL scheme of registered archives (default "memory").
// Empty values are ignored.
func WithScheme(scheme string) RegistryOption {
	return func(r *Registry) {
		if scheme != "" {
			r.scheme = scheme
		}
	}
}

// WithRegistryLogger sets the logger for registration and reclamation events.
// If not set, logging is disabled.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}
