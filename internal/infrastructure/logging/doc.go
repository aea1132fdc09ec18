// Package logging provides structured logging using uber/zap.
//
// Two modes: production emits JSON for machine parsing, development
// emits colored console output. Components receive a *Logger and attach
// structured fields for context:
//
//	logger := logging.NewDefault()
//	logger.Info("workspace opened", zap.String("workspace_id", id))
//	logger.Error("flush failed", zap.Error(err))
package logging
