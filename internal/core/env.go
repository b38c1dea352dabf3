package core

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadEnvFiles merges .env from the working directory and secrets.env from
// the config directory into the process environment, so tokens stay out of
// the YAML config. Missing files are fine; existing variables win.
func LoadEnvFiles() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	secrets := filepath.Join(DefaultConfigDir(), "secrets.env")
	if err := godotenv.Load(secrets); err == nil {
		log.Debug().Str("file", secrets).Msg("loaded secrets.env")
	}
}
