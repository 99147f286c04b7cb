package pg

import "time"

// Config holds PostgreSQL connection and migration settings.
type Config struct {
	ConnectionString string        `env:"DATABASE_URL,required"`
	MaxOpenConns     int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns     int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	MaxConnIdleTime  time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime  time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
	RetryAttempts    int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval    time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`

	MigrationsPath  string `env:"PG_MIGRATIONS_PATH" envDefault:"migrations"`
	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
}
