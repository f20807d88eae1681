package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/stackpilot/tenantctl/internal/seed"
	"github.com/stackpilot/tenantctl/internal/verify"
)

// VerifyCmd checks the provisioned state of a tenant against the expected
// graph. Exit code 0 means every required check passed, 1 means at least one
// failed, 2 means the command could not run with the given configuration.
type VerifyCmd struct {
	AWSFlags
	TenantID        string `help:"tenant identifier; empty targets the Day-0 account"`
	AdminEmail      string `help:"expected administrator email"`
	AdminGivenName  string `help:"administrator given name"`
	AdminFamilyName string `help:"administrator family name"`

	WithIdentityProvider bool `help:"include the identity-provider checks"`
	Fix                  bool `help:"repair failed checks by re-creating missing items"`
	JSON                 bool `name:"json" help:"emit the report as JSON"`
	Verbose              bool `help:"list passing checks as well"`
}

func (cmd *VerifyCmd) Run(ctx context.Context, globals *Globals) error {
	if cmd.TenantID == "" {
		cmd.TenantID = seed.AccountID
	}
	if cmd.WithIdentityProvider && cmd.UserPoolID == "" {
		return &ExitError{Code: 2, Message: "--with-identity-provider requires --user-pool-id"}
	}

	a, err := cmd.buildAdapters(ctx, globals)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	engine := verify.NewEngine(a.store, a.registry, a.provisioner, a.identity, verify.Config{
		TenantID:        cmd.TenantID,
		Environment:     cmd.Environment,
		SharedTableName: cmd.sharedTableName(),
		AdminEmail:      cmd.AdminEmail,
		AdminGivenName:  cmd.AdminGivenName,
		AdminFamilyName: cmd.AdminFamilyName,
	})

	report := engine.Run(ctx, verify.Options{
		Fix:                  cmd.Fix,
		WithIdentityProvider: cmd.WithIdentityProvider,
	})

	if cmd.JSON {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		cmd.printText(report)
	}

	if report.Failures() > 0 {
		return &ExitError{Code: 1}
	}
	return nil
}

func (cmd *VerifyCmd) printText(report *verify.Report) {
	for _, result := range report.Results {
		if result.Result == verify.ResultPass && !result.Repaired && !cmd.Verbose {
			continue
		}

		line := fmt.Sprintf("%-4s  %s: %s", result.Result, result.Category, result.Name)
		if result.Repaired {
			line += " (repaired)"
		}
		if result.Detail != "" {
			line += " - " + result.Detail
		}
		fmt.Fprintln(os.Stdout, line)
	}

	fmt.Fprintf(os.Stdout, "%d checks, %d failed, %d warnings, %d repaired\n",
		len(report.Results), report.Failures(), report.Warnings(), report.Repaired)
}
