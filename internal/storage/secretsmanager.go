package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI defines the Secrets Manager operations used by the
// credential store.
type SecretsManagerAPI interface {
	// GetSecretValue retrieves a secret value.
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// CredentialStore reads the Lightspeed OAuth client secret from AWS
// Secrets Manager.
type CredentialStore struct {
	// client is the Secrets Manager API client.
	client SecretsManagerAPI

	// secretARN is the ARN of the secret storing the client secret.
	secretARN string
}

// ClientSecret returns the OAuth client secret from Secrets Manager.
func (s *CredentialStore) ClientSecret(ctx context.Context) (string, error) {
	output, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretARN),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret from Secrets Manager: %w", err)
	}

	if output.SecretString == nil || *output.SecretString == "" {
		return "", errors.New("secret has no string value")
	}

	return *output.SecretString, nil
}

// NewCredentialStore creates a new Secrets Manager-backed credential store.
func NewCredentialStore(client SecretsManagerAPI, secretARN string) (*CredentialStore, error) {
	if client == nil {
		return nil, errors.New("secrets manager client is required")
	}
	if secretARN == "" {
		return nil, errors.New("secret ARN is required")
	}

	return &CredentialStore{
		client:    client,
		secretARN: secretARN,
	}, nil
}
