package logger

import (
	"github.com/Jainayushgit/store-provisioner/sym"
)

// Symbol-aware logging helpers.
// These functions log with the symbol as a structured field, not in the message.
//
// Usage:
//
//	// Instead of:
//	logger.Infow(sym.Engine + " lease acquired", "job_id", id)
//
//	// Use:
//	logger.EngineInfow("lease acquired", "job_id", id)

// EngineInfow logs an info message with the Engine symbol (꩜).
func EngineInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Engine}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// EngineDebugw logs a debug message with the Engine symbol (꩜).
func EngineDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Engine}, keysAndValues...)
		Logger.Debugw(msg, fields...)
	}
}

// EngineWarnw logs a warning message with the Engine symbol (꩜).
func EngineWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Engine}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// EngineErrorw logs an error message with the Engine symbol (꩜).
func EngineErrorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Engine}, keysAndValues...)
		Logger.Errorw(msg, fields...)
	}
}

// EngineOpenInfow logs a startup event with the EngineOpen symbol (✿).
func EngineOpenInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.EngineOpen}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// EngineCloseInfow logs a shutdown event with the EngineClose symbol (❀).
func EngineCloseInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.EngineClose}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// DBInfow logs an info message with the DB symbol (⊔).
func DBInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.DB}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// HTTPInfow logs an info message with the HTTP symbol (⌗).
func HTTPInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.HTTP}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// HTTPErrorw logs an error message with the HTTP symbol (⌗).
func HTTPErrorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.HTTP}, keysAndValues...)
		Logger.Errorw(msg, fields...)
	}
}
