// Package bootstrap creates the environment-level infrastructure the control
// plane needs before the first tenant can be provisioned. It targets
// LocalStack in development and real accounts in CI; every operation is safe
// to re-run.
package bootstrap

import (
	"context"
	"fmt"
)

// Bootstrap creates the control-plane and shared tenant tables. With
// CleanResources set, existing tables are deleted first so tests start from
// a clean state; otherwise existing tables are reused.
func Bootstrap(ctx context.Context, cfg Config) (*Resources, error) {
	if cfg.DynamoClient == nil {
		return nil, fmt.Errorf("DynamoClient is required")
	}
	if cfg.ControlPlaneTable == "" || cfg.SharedTable == "" {
		return nil, fmt.Errorf("table names are required")
	}

	if err := createControlPlaneTable(ctx, cfg.DynamoClient, cfg.ControlPlaneTable, cfg.CleanResources); err != nil {
		return nil, fmt.Errorf("failed to create control-plane table: %w", err)
	}
	if err := createTenantTable(ctx, cfg.DynamoClient, cfg.SharedTable, cfg.CleanResources); err != nil {
		return nil, fmt.Errorf("failed to create shared tenant table: %w", err)
	}

	return &Resources{
		ControlPlaneTable: cfg.ControlPlaneTable,
		SharedTable:       cfg.SharedTable,
	}, nil
}

// Cleanup deletes the tables created by Bootstrap.
func Cleanup(ctx context.Context, cfg Config, res *Resources) error {
	if err := deleteTableIfExists(ctx, cfg.DynamoClient, res.ControlPlaneTable); err != nil {
		return fmt.Errorf("failed to delete control-plane table: %w", err)
	}
	if err := deleteTableIfExists(ctx, cfg.DynamoClient, res.SharedTable); err != nil {
		return fmt.Errorf("failed to delete shared tenant table: %w", err)
	}
	return nil
}
