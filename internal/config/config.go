// Package config provides configuration loading from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// EnvConnectionsTableName is the DynamoDB table for user connections.
	EnvConnectionsTableName = "DYNAMODB_CONNECTIONS_TABLE"

	// EnvItemsTableName is the DynamoDB table for sold-item rows.
	EnvItemsTableName = "DYNAMODB_ITEMS_TABLE"

	// EnvLightspeedAPIBaseURL is the base URL for the Lightspeed Retail API.
	EnvLightspeedAPIBaseURL = "LIGHTSPEED_API_BASE_URL"

	// EnvLightspeedClientIDParameter is the SSM parameter storing the OAuth client ID.
	EnvLightspeedClientIDParameter = "LIGHTSPEED_CLIENT_ID_PARAMETER"

	// EnvLightspeedClientSecretARN is the Secrets Manager ARN for the OAuth client secret.
	EnvLightspeedClientSecretARN = "LIGHTSPEED_CLIENT_SECRET_ARN"

	// EnvLightspeedTokenURL is the OAuth token endpoint URL.
	EnvLightspeedTokenURL = "LIGHTSPEED_TOKEN_URL"
)

// DynamoDB holds AWS DynamoDB configuration.
type DynamoDB struct {
	// ConnectionsTable is the table storing per-user connections.
	ConnectionsTable string

	// ItemsTable is the table storing sold-item rows.
	ItemsTable string
}

// Lightspeed holds Lightspeed Retail API configuration.
type Lightspeed struct {
	// APIBaseURL is the base URL for API requests.
	APIBaseURL string

	// ClientIDParameter is the SSM parameter name storing the OAuth client ID.
	ClientIDParameter string

	// ClientSecretARN is the Secrets Manager ARN storing the OAuth client secret.
	ClientSecretARN string

	// TokenURL is the OAuth token endpoint.
	TokenURL string
}

// Settings holds all configuration for the application.
type Settings struct {
	// DynamoDB contains AWS DynamoDB settings.
	DynamoDB DynamoDB

	// Lightspeed contains Lightspeed Retail API settings.
	Lightspeed Lightspeed
}

func (s *Settings) validate() error {
	var errs []error

	if s.DynamoDB.ConnectionsTable == "" {
		errs = append(errs, requiredError(EnvConnectionsTableName))
	}
	if s.DynamoDB.ItemsTable == "" {
		errs = append(errs, requiredError(EnvItemsTableName))
	}
	if s.Lightspeed.ClientIDParameter == "" {
		errs = append(errs, requiredError(EnvLightspeedClientIDParameter))
	}
	if s.Lightspeed.ClientSecretARN == "" {
		errs = append(errs, requiredError(EnvLightspeedClientSecretARN))
	}

	return errors.Join(errs...)
}

// Load reads configuration from environment variables.
func Load() (*Settings, error) {
	cfg := &Settings{
		DynamoDB: DynamoDB{
			ConnectionsTable: strings.TrimSpace(os.Getenv(EnvConnectionsTableName)),
			ItemsTable:       strings.TrimSpace(os.Getenv(EnvItemsTableName)),
		},
		Lightspeed: Lightspeed{
			APIBaseURL:        envOrDefault(EnvLightspeedAPIBaseURL, "https://api.lightspeedapp.com"),
			ClientIDParameter: strings.TrimSpace(os.Getenv(EnvLightspeedClientIDParameter)),
			ClientSecretARN:   strings.TrimSpace(os.Getenv(EnvLightspeedClientSecretARN)),
			TokenURL:          envOrDefault(EnvLightspeedTokenURL, "https://cloud.lightspeedapp.com/auth/oauth/token"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOrDefault(key string, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func requiredError(envVar string) error {
	return fmt.Errorf("%s is required", envVar)
}
