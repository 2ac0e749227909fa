// Package observability builds the process-wide logger.
package observability

import "go.uber.org/zap"

// NewLogger returns a production JSON logger, or a human-readable
// development logger when debug is set.
func NewLogger(debug bool) *zap.Logger {
	if debug {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.Must(zap.NewProduction())
}
