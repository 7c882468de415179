// Package sym defines the small set of glyphs used to visually tag log lines
// by subsystem. Symbols are plain string constants; there is no registry or
// generated table behind them.
package sym

const (
	// Engine marks general job-engine activity: leasing, dispatch, completion.
	Engine = "꩜"
	// EngineOpen marks engine/worker startup.
	EngineOpen = "✿"
	// EngineClose marks engine/worker shutdown.
	EngineClose = "❀"
	// DB marks database connection and migration activity.
	DB = "⊔"
	// HTTP marks the admission API server.
	HTTP = "⌗"
)
