package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgreenaway/posbridge/internal/config"
)

const configTemplate = `# posbridge configuration
# Used by the local 'auth' subcommand.

lightspeed:
  # From the Lightspeed Retail developer portal.
  client_id: ""
  client_secret: ""

# Identifies whose connection the auth flow creates (default: local).
user_id: ""
`

// runInit creates a sample configuration file.
func runInit() error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	configPath, err := config.ConfigFilePath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println("Created config file:", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit the config file with your Lightspeed credentials")
	fmt.Println("  2. Run 'posbridge auth' to authorize with Lightspeed")

	connectionPath := filepath.Join(configDir, "connection.json")
	fmt.Println()
	fmt.Printf("Connection will be stored at: %s\n", connectionPath)

	return nil
}
