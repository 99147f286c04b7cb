package dispatch

import "time"

// Config holds the dispatch engine tunables.
// These bound resource usage per run; none of them change the
// algorithm's contract.
type Config struct {
	BatchLimit      int           `env:"DISPATCH_BATCH_LIMIT" envDefault:"50"`        // Max events fetched per run
	MaxSubscribers  int           `env:"DISPATCH_MAX_SUBSCRIBERS" envDefault:"1000"`  // Max subscribers scanned per run
	DigestItemCap   int           `env:"DISPATCH_DIGEST_ITEM_CAP" envDefault:"25"`    // Max queued deliveries per digest
	CalendarRowCap  int           `env:"DISPATCH_CALENDAR_ROW_CAP" envDefault:"10"`   // Max calendar rows rendered per digest
	StaleClaimAfter time.Duration `env:"DISPATCH_STALE_CLAIM_AFTER" envDefault:"30m"` // Processing rows older than this are re-claimable
	DigestTolerance time.Duration `env:"DISPATCH_DIGEST_TOLERANCE" envDefault:"5m"`   // Due window half-width
	DigestMinGap    time.Duration `env:"DISPATCH_DIGEST_MIN_GAP" envDefault:"30m"`    // Anti-spam spacing per anchor
	Timezone        string        `env:"DISPATCH_TIMEZONE" envDefault:"America/New_York"`
	RateLimitPause  time.Duration `env:"DISPATCH_RATE_LIMIT_PAUSE" envDefault:"5s"` // Extra pause after a rate-limited send
}

// withDefaults fills zero values so a partially built config (tests,
// manual construction) still runs.
func (c Config) withDefaults() Config {
	if c.BatchLimit <= 0 {
		c.BatchLimit = 50
	}
	if c.MaxSubscribers <= 0 {
		c.MaxSubscribers = 1000
	}
	if c.DigestItemCap <= 0 {
		c.DigestItemCap = 25
	}
	if c.CalendarRowCap <= 0 {
		c.CalendarRowCap = 10
	}
	if c.StaleClaimAfter <= 0 {
		c.StaleClaimAfter = 30 * time.Minute
	}
	if c.DigestTolerance <= 0 {
		c.DigestTolerance = 5 * time.Minute
	}
	if c.DigestMinGap <= 0 {
		c.DigestMinGap = 30 * time.Minute
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.RateLimitPause <= 0 {
		c.RateLimitPause = 5 * time.Second
	}
	return c
}
