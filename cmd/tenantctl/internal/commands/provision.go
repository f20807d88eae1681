package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/workers"
)

// ProvisionCmd runs the register-or-provision step for one tenant.
type ProvisionCmd struct {
	AWSFlags
	TenantID   string `help:"tenant identifier" required:""`
	TenantName string `help:"tenant display name"`
	Isolation  string `help:"storage isolation mode" enum:"shared,dedicated" default:"shared"`
}

func (cmd *ProvisionCmd) Run(ctx context.Context, globals *Globals) error {
	w, err := cmd.buildWorkers(ctx, globals)
	if err != nil {
		return err
	}

	result, err := w.RegisterOrProvision(ctx, workers.ProvisionRequest{
		TenantID:   cmd.TenantID,
		TenantName: cmd.TenantName,
		Isolation:  models.IsolationMode(cmd.Isolation),
	})
	if err != nil {
		return err
	}

	return printJSON(result)
}

// DeprovisionCmd starts tear-down of a tenant's storage.
type DeprovisionCmd struct {
	AWSFlags
	TenantID  string `help:"tenant identifier" required:""`
	Isolation string `help:"storage isolation mode" enum:"shared,dedicated" default:"shared"`
}

func (cmd *DeprovisionCmd) Run(ctx context.Context, globals *Globals) error {
	w, err := cmd.buildWorkers(ctx, globals)
	if err != nil {
		return err
	}

	result, err := w.Deprovision(ctx, workers.DeprovisionRequest{
		TenantID:  cmd.TenantID,
		Isolation: models.IsolationMode(cmd.Isolation),
	})
	if err != nil {
		return err
	}

	return printJSON(result)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
