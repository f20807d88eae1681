package commands

import (
	"context"

	"github.com/stackpilot/tenantctl/internal/seed"
	"github.com/stackpilot/tenantctl/internal/workers"
)

// CreateAdminCmd creates the administrative identity for a tenant across the
// identity provider and the entity store.
type CreateAdminCmd struct {
	AWSFlags
	TenantID     string `help:"tenant identifier; empty targets the Day-0 account"`
	EnterpriseID string `help:"enterprise identifier; empty targets the Day-0 enterprise"`
	UserID       string `help:"fixed user record id; empty generates one"`
	Email        string `help:"administrator email" required:""`
	GivenName    string `help:"administrator given name" required:""`
	FamilyName   string `help:"administrator family name" required:""`
}

func (cmd *CreateAdminCmd) Run(ctx context.Context, globals *Globals) error {
	if cmd.TenantID == "" {
		cmd.TenantID = seed.AccountID
	}
	if cmd.EnterpriseID == "" {
		cmd.EnterpriseID = seed.EnterpriseID
	}

	w, err := cmd.buildWorkers(ctx, globals)
	if err != nil {
		return err
	}

	result, err := w.CreateAdminIdentity(ctx, workers.AdminRequest{
		TenantID:     cmd.TenantID,
		EnterpriseID: cmd.EnterpriseID,
		UserID:       cmd.UserID,
		Email:        cmd.Email,
		GivenName:    cmd.GivenName,
		FamilyName:   cmd.FamilyName,
	})
	if err != nil {
		return err
	}

	return printJSON(result)
}

// FinalizeCmd runs the last pipeline step: verification with repair plus the
// registry outcome records.
type FinalizeCmd struct {
	AWSFlags
	TenantID        string `help:"tenant identifier; empty targets the Day-0 account"`
	AdminEmail      string `help:"expected administrator email"`
	AdminGivenName  string `help:"administrator given name"`
	AdminFamilyName string `help:"administrator family name"`
}

func (cmd *FinalizeCmd) Run(ctx context.Context, globals *Globals) error {
	if cmd.TenantID == "" {
		cmd.TenantID = seed.AccountID
	}

	w, err := cmd.buildWorkers(ctx, globals)
	if err != nil {
		return err
	}

	result, err := w.FinalizeAndVerify(ctx, workers.FinalizeRequest{
		TenantID:        cmd.TenantID,
		AdminEmail:      cmd.AdminEmail,
		AdminGivenName:  cmd.AdminGivenName,
		AdminFamilyName: cmd.AdminFamilyName,
	})
	if err != nil {
		return err
	}

	return printJSON(result)
}
