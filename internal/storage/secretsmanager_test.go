package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/require"
)

// mockSecretsManager implements SecretsManagerAPI.
type mockSecretsManager struct {
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockSecretsManager) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	return m.getSecretValueFunc(ctx, params)
}

func TestCredentialStore_ClientSecret(t *testing.T) {
	t.Parallel()

	t.Run("returns the secret value", func(t *testing.T) {
		t.Parallel()

		mock := &mockSecretsManager{
			getSecretValueFunc: func(_ context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
				require.Equal(t, "arn:aws:secretsmanager:secret", *params.SecretId)
				return &secretsmanager.GetSecretValueOutput{
					SecretString: aws.String("super-secret"),
				}, nil
			},
		}

		store, err := NewCredentialStore(mock, "arn:aws:secretsmanager:secret")
		require.NoError(t, err)

		secret, err := store.ClientSecret(context.Background())
		require.NoError(t, err)
		require.Equal(t, "super-secret", secret)
	})

	t.Run("empty secret is an error", func(t *testing.T) {
		t.Parallel()

		mock := &mockSecretsManager{
			getSecretValueFunc: func(_ context.Context, _ *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
				return &secretsmanager.GetSecretValueOutput{}, nil
			},
		}

		store, err := NewCredentialStore(mock, "arn:aws:secretsmanager:secret")
		require.NoError(t, err)

		_, err = store.ClientSecret(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "no string value")
	})

	t.Run("API error propagates", func(t *testing.T) {
		t.Parallel()

		mock := &mockSecretsManager{
			getSecretValueFunc: func(_ context.Context, _ *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
				return nil, errors.New("access denied")
			},
		}

		store, err := NewCredentialStore(mock, "arn:aws:secretsmanager:secret")
		require.NoError(t, err)

		_, err = store.ClientSecret(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "access denied")
	})
}

func TestNewCredentialStore(t *testing.T) {
	t.Parallel()

	_, err := NewCredentialStore(nil, "arn")
	require.Error(t, err)

	_, err = NewCredentialStore(&mockSecretsManager{}, "")
	require.Error(t, err)
}
