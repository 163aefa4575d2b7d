// Package logger writes leveled, template-formatted messages to the console,
// a per-day log file, or both.
//
// A format template is expanded for every message. Recognized placeholders:
//
//	%D  current date (2006-01-02)
//	%T  current time (15:04:05)
//	%N  logger name
//	%L  message level (DEBUG, INFO, WARNING, CRITICAL)
//	%%  a literal percent sign
//
// The output mode is a string of sink letters processed in order:
// "c" prints to the console, "f" appends to the log file, "cf" does both.
//
// Usage:
//
//	cfg := logger.DefaultConfig()
//	cfg.Directory = "logs"
//	cfg.Mode = "cf"
//	log, err := logger.New("%N %L @ %T", cfg)
//	if err != nil {
//		return err
//	}
//	defer log.Close()
//	log.Info("starting")
//
// Lines are rendered by logrus formatters; the console sink goes through a
// colorable writer so ANSI colors also work on Windows terminals.
package logger
