// Package logger builds configured slog.Logger instances.
//
// Output is JSON by default for log aggregation; development runs switch
// to text with debug level. Static attributes (service name, environment)
// ride on every record. Components receive a *slog.Logger and never
// construct their own.
package logger
