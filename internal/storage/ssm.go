package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMAPI defines the SSM operations used by the parameter store.
type SSMAPI interface {
	// GetParameter retrieves a parameter from SSM.
	GetParameter(
		ctx context.Context,
		params *ssm.GetParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)
}

// ParameterStore reads non-secret deploy parameters, such as the OAuth
// client ID, from AWS SSM Parameter Store.
type ParameterStore struct {
	// client is the SSM API client.
	client SSMAPI
}

// Parameter returns the named parameter's value, or empty if it does not exist.
func (s *ParameterStore) Parameter(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.New("parameter name is required")
	}

	output, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(name),
	})
	if err != nil {
		// Parameter not found is not an error - return empty.
		var notFoundErr *types.ParameterNotFound
		if errors.As(err, &notFoundErr) {
			return "", nil
		}
		return "", fmt.Errorf("getting parameter from SSM: %w", err)
	}

	if output.Parameter == nil || output.Parameter.Value == nil {
		return "", nil
	}

	return *output.Parameter.Value, nil
}

// NewParameterStore creates a new SSM-backed parameter store.
func NewParameterStore(client SSMAPI) (*ParameterStore, error) {
	if client == nil {
		return nil, errors.New("ssm client is required")
	}

	return &ParameterStore{client: client}, nil
}
