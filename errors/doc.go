// Package errors turns fatal cleanup failures into user-facing CLI errors.
//
// Core types:
//   - CLIError: wraps an error with a message, a suggestion and details
//   - ErrorMessenger: customizes the wording
//
// Wrap recognises the cleanup error taxonomy (project not found, authorization,
// remote service) and invalid configuration values:
//
//	if err := run(); err != nil {
//	    err = errors.Wrap(err, cfg.URL)
//	    fmt.Fprintln(os.Stderr, "Error:", err)
//	}
//
// The wrapped error still matches the typed cause with errors.As, and one of the
// sentinels (ErrProjectNotFound, ErrNotAuthenticated, ...) with errors.Is.
package errors
