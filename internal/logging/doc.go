// Package logging provides structured logging utilities for the appbridge
// application.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (user name anonymization)
//   - Token masking so credentials never reach log output
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "serving.query")
//	logger.Info("querying endpoint",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("resolved identity",
//	    logging.UserHash(user.UserName))
//
// # Security Considerations
//
// This package is designed with security in mind:
//   - User names are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly; SanitizeToken reports length only
package logging
