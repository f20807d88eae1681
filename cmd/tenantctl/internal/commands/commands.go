package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/stackpilot/tenantctl/internal/idp"
	"github.com/stackpilot/tenantctl/internal/logger"
	"github.com/stackpilot/tenantctl/internal/notify"
	"github.com/stackpilot/tenantctl/internal/provisioner"
	"github.com/stackpilot/tenantctl/internal/registry"
	"github.com/stackpilot/tenantctl/internal/store"
	awsstore "github.com/stackpilot/tenantctl/internal/store/aws"
	"github.com/stackpilot/tenantctl/internal/workers"
)

type Globals struct {
	Debug   bool
	Version string
}

// ExitError carries a specific process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// AWSFlags are the connection settings shared by every command that talks to
// the provider.
type AWSFlags struct {
	AWSRegion   string `help:"AWS region" default:"us-east-1" env:"AWS_REGION"`
	AWSEndpoint string `help:"AWS endpoint (for LocalStack)" env:"AWS_ENDPOINT" default:""`

	Environment string `help:"environment name (local, dev, prod)" default:"local" enum:"local,dev,prod"`
	Table       string `help:"control-plane table name" default:"" env:"CONTROL_PLANE_TABLE"`
	SharedTable string `help:"shared tenant table name" default:"" env:"SHARED_TENANT_TABLE"`

	TemplateBucket string `help:"bucket holding stack templates" default:"" env:"TEMPLATE_BUCKET"`
	UserPoolID     string `help:"identity pool id; empty disables identity calls" default:"" env:"USER_POOL_ID"`
	SenderEmail    string `help:"sender address for credential mail; empty disables mail" default:"" env:"SENDER_EMAIL"`
}

// loadAWSConfig loads AWS configuration with optional endpoint override.
func (f *AWSFlags) loadAWSConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(f.AWSRegion),
	}

	if f.AWSEndpoint != "" {
		// Use BaseEndpoint for LocalStack support
		opts = append(opts, config.WithBaseEndpoint(f.AWSEndpoint))
	}

	return config.LoadDefaultConfig(ctx, opts...)
}

// tableName applies the environment-derived default.
func (f *AWSFlags) tableName() string {
	if f.Table != "" {
		return f.Table
	}
	return fmt.Sprintf("tenantctl-%s-control-plane", f.Environment)
}

func (f *AWSFlags) sharedTableName() string {
	if f.SharedTable != "" {
		return f.SharedTable
	}
	return fmt.Sprintf("tenantctl-%s-shared", f.Environment)
}

func (f *AWSFlags) templateBucket() string {
	if f.TemplateBucket != "" {
		return f.TemplateBucket
	}
	return fmt.Sprintf("tenantctl-%s-templates", f.Environment)
}

// adapters bundles the live provider clients behind the domain interfaces.
type adapters struct {
	store       store.EntityStore
	registry    registry.ParameterRegistry
	provisioner provisioner.StackProvisioner
	identity    idp.IdentityProvider
	notifier    notify.Notifier
}

// buildAdapters wires the full adapter set against the configured endpoints.
func (f *AWSFlags) buildAdapters(ctx context.Context, globals *Globals) (*adapters, error) {
	log.Logger = logger.Setup(globals.Debug)

	awsConfig, err := f.loadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cfnConfig := provisioner.CloudFormationConfig{TemplateBucket: f.templateBucket()}
	if f.AWSEndpoint != "" {
		cfnConfig.TemplateBaseURL = fmt.Sprintf("%s/%s", f.AWSEndpoint, f.templateBucket())
	}

	a := &adapters{
		store:    awsstore.NewEntityStore(dynamodb.NewFromConfig(awsConfig), f.tableName()),
		registry: registry.NewSSMRegistry(ssm.NewFromConfig(awsConfig)),
		provisioner: provisioner.NewCloudFormationProvisioner(
			cloudformation.NewFromConfig(awsConfig),
			s3.NewFromConfig(awsConfig),
			cfnConfig,
		),
	}

	if f.UserPoolID != "" {
		a.identity = idp.NewCognitoProvider(cognitoidentityprovider.NewFromConfig(awsConfig), f.UserPoolID)
	}
	if f.SenderEmail != "" {
		a.notifier = notify.NewSESNotifier(sesv2.NewFromConfig(awsConfig), f.SenderEmail)
	}

	return a, nil
}

// buildWorkers wires the adapters into the worker bundle.
func (f *AWSFlags) buildWorkers(ctx context.Context, globals *Globals) (*workers.Workers, error) {
	a, err := f.buildAdapters(ctx, globals)
	if err != nil {
		return nil, err
	}

	return workers.New(a.store, a.registry, a.provisioner, a.identity, a.notifier, workers.Config{
		Environment:          f.Environment,
		SharedTableName:      f.sharedTableName(),
		StackWaitTimeout:     15 * time.Minute,
		AdminProviderGroup:   "platform-admins",
		DefaultProviderGroup: "platform-users",
		SendCredentials:      f.SenderEmail != "",
	}), nil
}
