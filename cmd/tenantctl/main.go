package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/stackpilot/tenantctl/cmd/tenantctl/internal/commands"
	"github.com/stackpilot/tenantctl/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Bootstrap   commands.BootstrapCmd   `cmd:"" help:"Create the control-plane table and seed the Day-0 graph"`
		Provision   commands.ProvisionCmd   `cmd:"" help:"Register or provision storage for a tenant"`
		Status      commands.StatusCmd      `cmd:"" help:"Poll provisioning status for a tenant"`
		CreateAdmin commands.CreateAdminCmd `cmd:"" name:"create-admin" help:"Create the tenant's administrative identity"`
		Finalize    commands.FinalizeCmd    `cmd:"" help:"Run verification with repair and record the outcome"`
		Verify      commands.VerifyCmd      `cmd:"" help:"Verify the provisioned state of a tenant"`
		Deprovision commands.DeprovisionCmd `cmd:"" help:"Tear down a tenant's storage"`
		Debug       bool                    `help:"Enable debug mode."`
		Telemetry   bool                    `help:"Enable OpenTelemetry metrics export." env:"TENANTCTL_TELEMETRY"`
		Version     kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	shutdown := func(context.Context) error { return nil }
	if cli.Telemetry {
		s, err := telemetry.InitTelemetry(ctx, "tenantctl", version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		} else {
			shutdown = s
		}
	}

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})

	// Flush metrics before any exit path; os.Exit skips defers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("Failed to shutdown telemetry")
	}
	cancel()

	var exit *commands.ExitError
	if errors.As(err, &exit) {
		if exit.Message != "" {
			cmd.Errorf("%s", exit.Message)
		}
		os.Exit(exit.Code)
	}
	cmd.FatalIfErrorf(err)
}
