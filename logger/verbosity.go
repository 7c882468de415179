package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants. provisionerd passes its -v flag count plus
// VerbosityInfo, so it logs at info level by default and at debug with -v.
const (
	VerbosityUser  = 0 // errors and warnings only
	VerbosityInfo  = 1 // + informational messages
	VerbosityDebug = 2 // + debug messages
)

// VerbosityToLevel maps a verbosity level to a zap log level
//
// Mapping:
//
//	0   -> WarnLevel  (errors and warnings only)
//	1   -> InfoLevel  (+ informational messages)
//	2+  -> DebugLevel (+ debug messages)
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch verbosity {
	case VerbosityUser:
		return zapcore.WarnLevel
	case VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
