package pg

import "errors"

var (
	ErrFailedToParseConfig     = errors.New("pg: failed to parse connection config")
	ErrFailedToConnect         = errors.New("pg: failed to open connection")
	ErrHealthcheckFailed       = errors.New("pg: healthcheck failed")
	ErrFailedToApplyMigrations = errors.New("pg: failed to apply migrations")
	ErrMigrationsDirNotFound   = errors.New("pg: migrations directory not found")
)
