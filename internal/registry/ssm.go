package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog/log"
)

// SSMRegistry is the AWS SSM Parameter Store implementation of
// ParameterRegistry.
type SSMRegistry struct {
	client *ssm.Client
}

// NewSSMRegistry creates a registry backed by SSM Parameter Store.
func NewSSMRegistry(client *ssm.Client) *SSMRegistry {
	return &SSMRegistry{client: client}
}

// Get fetches a parameter value.
func (r *SSMRegistry) Get(ctx context.Context, name string) (string, error) {
	output, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", ErrParameterNotFound
		}
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}
	if output.Parameter == nil || output.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return *output.Parameter.Value, nil
}

// Put writes a parameter, overwriting any existing value.
func (r *SSMRegistry) Put(ctx context.Context, name, value string) error {
	_, err := r.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to put parameter %s: %w", name, err)
	}

	log.Debug().Str("parameter", name).Msg("parameter written")
	return nil
}

// Delete removes a parameter. Absent parameters are a no-op.
func (r *SSMRegistry) Delete(ctx context.Context, name string) error {
	_, err := r.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{
		Name: aws.String(name),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to delete parameter %s: %w", name, err)
	}
	return nil
}
