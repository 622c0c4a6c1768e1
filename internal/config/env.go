package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadEnv.
const (
	EnvTranslateAPIKey  = "SITESIFT_TRANSLATE_API_KEY"
	EnvTranslateURL     = "SITESIFT_TRANSLATE_URL"
	EnvTranslateBackend = "SITESIFT_TRANSLATE_BACKEND"
)

// LoadEnv loads the given .env files (default ".env") into the process
// environment without overriding variables that are already set, then copies
// the translation settings into c. Missing .env files are not an error.
func LoadEnv(c *Config, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if v := os.Getenv(EnvTranslateAPIKey); v != "" {
		c.TranslateAPIKey = v
	}
	if v := os.Getenv(EnvTranslateURL); v != "" {
		c.TranslateURL = v
	}
	if v := os.Getenv(EnvTranslateBackend); v != "" {
		c.TranslateBackend = v
	}
	return nil
}

// ReadEnvFile parses a .env file without touching the process environment.
func ReadEnvFile(path string) (map[string]string, error) {
	return godotenv.Read(path)
}
