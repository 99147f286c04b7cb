// Package config loads typed configuration structs from the environment.
//
// Each component declares its own Config struct with `env` tags and
// defaults; Load parses the environment into it, loading a .env file
// once per process first so local runs behave like deployed ones.
// Configuration problems surface at startup (use MustLoad in main),
// never as runtime re-parsing.
//
// Built on `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`.
//
//	var cfg dispatch.Config
//	config.MustLoad(&cfg)
package config
