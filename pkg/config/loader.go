package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Load reads envPath into the process environment (without overwriting
// variables already set, matching godotenv's own precedence: the shell
// environment always wins over the file) and returns the resulting Config.
// A missing file is not an error — deployments that set real environment
// variables directly have no .env file at all — but a malformed one is.
func Load(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, NewLoadError(envPath, err)
		}
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
