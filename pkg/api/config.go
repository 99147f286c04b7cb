package api

// Config holds API settings loaded from the environment.
type Config struct {
	// SharedSecret authenticates machine callers via Authorization: Bearer.
	SharedSecret string `env:"API_SHARED_SECRET"`
}
