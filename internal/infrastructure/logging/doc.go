// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Features:
//   - Zero-allocation logging in production
//   - Structured fields for request ids, channels, and paths
//   - Configurable output paths
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Channel connected", zap.String("channel", chanID))
//	logger.Warn("Response for unknown request", zap.Uint64("id", id))
package logging
