package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/stackpilot/tenantctl/internal/bootstrap"
	"github.com/stackpilot/tenantctl/internal/logger"
	"github.com/stackpilot/tenantctl/internal/seed"
	"github.com/stackpilot/tenantctl/internal/verify"
)

// BootstrapCmd prepares an environment: it creates the control-plane table,
// the shared tenant table and the template bucket, then seeds the Day-0
// entity graph. Every step tolerates already-existing resources so the
// command can be re-run.
type BootstrapCmd struct {
	AWSFlags
	AdminEmail      string `help:"administrator email for the seeded admin checks"`
	AdminGivenName  string `help:"administrator given name"`
	AdminFamilyName string `help:"administrator family name"`
	SkipSeed        bool   `help:"create infrastructure only, skip the Day-0 seed"`
	Clean           bool   `help:"delete existing tables first (destroys data)"`
}

func (cmd *BootstrapCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	log.Info().
		Str("environment", cmd.Environment).
		Str("table", cmd.tableName()).
		Msg("starting environment bootstrap")

	awsConfig, err := cmd.loadAWSConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	resources, err := bootstrap.Bootstrap(ctx, bootstrap.Config{
		DynamoClient:      dynamodb.NewFromConfig(awsConfig),
		ControlPlaneTable: cmd.tableName(),
		SharedTable:       cmd.sharedTableName(),
		CleanResources:    cmd.Clean,
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("control_plane_table", resources.ControlPlaneTable).
		Str("shared_table", resources.SharedTable).
		Msg("tables ready")

	if err := cmd.createTemplateBucket(ctx, s3.NewFromConfig(awsConfig)); err != nil {
		return err
	}

	if cmd.SkipSeed {
		log.Info().Msg("bootstrap complete, seed skipped")
		return nil
	}

	return cmd.seedDay0(ctx, globals)
}

func (cmd *BootstrapCmd) createTemplateBucket(ctx context.Context, client *s3.Client) error {
	bucket := cmd.templateBucket()

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		var exists *s3types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			log.Info().Str("bucket", bucket).Msg("bucket already exists")
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	log.Info().Str("bucket", bucket).Msg("created template bucket")
	return nil
}

// seedDay0 converges the Day-0 entity graph through the verifier's repair
// path, so bootstrap and verify --fix can never drift apart.
func (cmd *BootstrapCmd) seedDay0(ctx context.Context, globals *Globals) error {
	a, err := cmd.buildAdapters(ctx, globals)
	if err != nil {
		return err
	}

	engine := verify.NewEngine(a.store, a.registry, a.provisioner, a.identity, verify.Config{
		TenantID:        seed.AccountID,
		Environment:     cmd.Environment,
		SharedTableName: cmd.sharedTableName(),
		AdminEmail:      cmd.AdminEmail,
		AdminGivenName:  cmd.AdminGivenName,
		AdminFamilyName: cmd.AdminFamilyName,
	})

	report := engine.Run(ctx, verify.Options{
		Fix:                  true,
		WithIdentityProvider: cmd.UserPoolID != "",
	})
	if report.Failures() > 0 {
		return fmt.Errorf("seed did not converge: %d checks failed", report.Failures())
	}

	log.Info().
		Int("checks", len(report.Results)).
		Int("repaired", report.Repaired).
		Msg("Day-0 seed complete")

	return nil
}
