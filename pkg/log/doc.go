// Package log provides the logging abstraction used across actlife.
//
// The engine only depends on the Logger interface. A zerolog adapter is
// provided for binaries and a no-op logger for tests:
//
//	logger := log.NewZerologAdapter(zerolog.InfoLevel)
//	logger.Info("activity resumed", log.String("token", tok.String()))
//
//	quiet := log.NewNoopLogger()
//
// Child loggers carry fields on every entry:
//
//	actLog := logger.With(log.String("component", "com.example/.Main"))
package log
