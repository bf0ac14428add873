// Package logging defines the Logger interface AgentFlow components log
// through, plus the stock implementations: AgentFlowLogger (slog backed,
// JSON or text output, or wrapping a caller supplied *slog.Logger via
// NewSlogAdapter) and NoOpLogger (discards everything).
//
// Components never log directly; they receive a Logger so callers decide
// the sink, format and level once:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	r := runner.New(rootAgent, runner.WithLogger(logger))
//
// Log calls take a message plus alternating key/value pairs, matching slog
// conventions, so structured backends keep attributes intact.
package logging
