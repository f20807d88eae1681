package provisioner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// CloudFormationConfig holds the settings for the CloudFormation provisioner.
type CloudFormationConfig struct {
	// TemplateBucket is the object-storage bucket holding the stack
	// template.
	TemplateBucket string

	// TemplateBaseURL overrides the bucket URL, for non-standard endpoints
	// such as LocalStack. Empty means the standard virtual-hosted URL.
	TemplateBaseURL string
}

// CloudFormationProvisioner is the AWS implementation of StackProvisioner.
type CloudFormationProvisioner struct {
	cfnClient *cloudformation.Client
	s3Client  *s3.Client
	cfg       CloudFormationConfig
}

// NewCloudFormationProvisioner creates a provisioner backed by CloudFormation
// with templates stored in S3.
func NewCloudFormationProvisioner(cfnClient *cloudformation.Client, s3Client *s3.Client, cfg CloudFormationConfig) *CloudFormationProvisioner {
	return &CloudFormationProvisioner{
		cfnClient: cfnClient,
		s3Client:  s3Client,
		cfg:       cfg,
	}
}

// CreateStack ensures the template exists in object storage, then starts
// stack creation. An already-existing stack is returned as-is so repeated
// invocations converge.
func (p *CloudFormationProvisioner) CreateStack(ctx context.Context, input StackInput) (string, error) {
	templateURL, err := p.ensureTemplate(ctx)
	if err != nil {
		return "", err
	}

	result, err := p.cfnClient.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:   aws.String(input.StackName),
		TemplateURL: aws.String(templateURL),
		Parameters: []cfntypes.Parameter{
			{ParameterKey: aws.String("TenantId"), ParameterValue: aws.String(input.TenantID)},
			{ParameterKey: aws.String("TenantName"), ParameterValue: aws.String(input.TenantName)},
			{ParameterKey: aws.String("Environment"), ParameterValue: aws.String(input.Environment)},
			{ParameterKey: aws.String("BillingMode"), ParameterValue: aws.String(input.BillingMode)},
		},
		Tags: []cfntypes.Tag{
			{Key: aws.String("tenant"), Value: aws.String(input.TenantID)},
		},
	})
	if err != nil {
		var exists *cfntypes.AlreadyExistsException
		if errors.As(err, &exists) {
			desc, derr := p.DescribeStack(ctx, input.StackName)
			if derr != nil {
				return "", derr
			}
			log.Info().Str("stack", input.StackName).Msg("stack already exists, reusing")
			return desc.StackID, nil
		}
		return "", fmt.Errorf("failed to create stack %s: %w", input.StackName, err)
	}

	log.Info().
		Str("stack", input.StackName).
		Str("stack_id", aws.ToString(result.StackId)).
		Msg("stack creation started")

	return aws.ToString(result.StackId), nil
}

// DescribeStack returns the provider-neutral state of one stack.
func (p *CloudFormationProvisioner) DescribeStack(ctx context.Context, stackName string) (*StackDescription, error) {
	result, err := p.cfnClient.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return nil, ErrStackNotFound
		}
		return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}
	if len(result.Stacks) == 0 {
		return nil, ErrStackNotFound
	}

	return describeFromStack(result.Stacks[0]), nil
}

// DeleteStack starts deletion of a stack. Absent stacks are a no-op.
func (p *CloudFormationProvisioner) DeleteStack(ctx context.Context, stackName string) error {
	_, err := p.cfnClient.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return nil
		}
		return fmt.Errorf("failed to delete stack %s: %w", stackName, err)
	}

	log.Info().Str("stack", stackName).Msg("stack deletion started")
	return nil
}

// WaitForCreate blocks until the stack creation completes or maxWait elapses.
func (p *CloudFormationProvisioner) WaitForCreate(ctx context.Context, stackName string, maxWait time.Duration) (*StackDescription, error) {
	waiter := cloudformation.NewStackCreateCompleteWaiter(p.cfnClient)

	output, err := waiter.WaitForOutput(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	}, maxWait)
	if err != nil {
		// The waiter fails on rollback states as well as timeouts; report
		// the final observed state when one is available.
		desc, derr := p.DescribeStack(ctx, stackName)
		if derr == nil {
			return desc, fmt.Errorf("stack %s did not reach CREATE_COMPLETE: %s: %w", stackName, desc.StatusDetail, err)
		}
		return nil, fmt.Errorf("failed waiting for stack %s: %w", stackName, err)
	}
	if len(output.Stacks) == 0 {
		return nil, ErrStackNotFound
	}

	return describeFromStack(output.Stacks[0]), nil
}

// ensureTemplate uploads the embedded template if the object is absent and
// returns its URL.
func (p *CloudFormationProvisioner) ensureTemplate(ctx context.Context) (string, error) {
	_, err := p.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.cfg.TemplateBucket),
		Key:    aws.String(templateKey),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("failed to check template object: %w", err)
		}

		_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.cfg.TemplateBucket),
			Key:         aws.String(templateKey),
			Body:        strings.NewReader(tenantTableTemplate),
			ContentType: aws.String("application/x-yaml"),
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload template: %w", err)
		}

		log.Info().Str("bucket", p.cfg.TemplateBucket).Str("key", templateKey).Msg("uploaded stack template")
	}

	if p.cfg.TemplateBaseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(p.cfg.TemplateBaseURL, "/"), templateKey), nil
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", p.cfg.TemplateBucket, templateKey), nil
}

func describeFromStack(stack cfntypes.Stack) *StackDescription {
	desc := &StackDescription{
		StackID:      aws.ToString(stack.StackId),
		Status:       MapStatus(string(stack.StackStatus)),
		StatusDetail: aws.ToString(stack.StackStatusReason),
		Outputs:      make(map[string]string, len(stack.Outputs)),
	}
	if desc.StatusDetail == "" {
		desc.StatusDetail = string(stack.StackStatus)
	}
	for _, output := range stack.Outputs {
		desc.Outputs[aws.ToString(output.OutputKey)] = aws.ToString(output.OutputValue)
	}
	return desc
}

// isStackMissing detects the ValidationError CloudFormation returns for
// describe/delete calls against a stack that does not exist.
func isStackMissing(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}

// IsTransient reports whether err looks like provider throttling or brief
// unavailability worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Throttling") ||
		strings.Contains(msg, "RequestLimitExceeded") ||
		strings.Contains(msg, "ServiceUnavailable") ||
		strings.Contains(msg, "InternalFailure")
}
