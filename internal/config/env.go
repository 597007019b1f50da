package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads environment variables from .env/.env.local files.
// It attempts each supported filename in order and stops at the first
// successfully parsed file. Existing process environment is not overwritten.
func loadEnvFiles() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "Note: %s could not be loaded: %v\n", envPath, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", envPath)
		return
	}
}
