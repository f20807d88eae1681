package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/provisioner"
	"github.com/stackpilot/tenantctl/internal/workers"
)

// StatusCmd polls the provisioning status of one tenant. With --watch it
// keeps polling until the status is terminal.
type StatusCmd struct {
	AWSFlags
	TenantID  string        `help:"tenant identifier" required:""`
	Isolation string        `help:"storage isolation mode" enum:"shared,dedicated" default:"shared"`
	Watch     bool          `help:"poll until the status is terminal"`
	Interval  time.Duration `help:"delay between polls" default:"5s"`
}

func (cmd *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	w, err := cmd.buildWorkers(ctx, globals)
	if err != nil {
		return err
	}

	var prior provisioner.Status
	for {
		result, err := w.PollStatus(ctx, workers.PollRequest{
			TenantID:    cmd.TenantID,
			Isolation:   models.IsolationMode(cmd.Isolation),
			PriorStatus: prior,
		})
		if err != nil {
			return err
		}

		if !cmd.Watch || terminal(result.Status) {
			return printJSON(result)
		}

		log.Info().
			Str("tenant_id", cmd.TenantID).
			Str("status", string(result.Status)).
			Msg("waiting for terminal status")

		prior = result.Status
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cmd.Interval):
		}
	}
}

func terminal(status provisioner.Status) bool {
	switch status {
	case provisioner.StatusReady, provisioner.StatusDeleted, provisioner.StatusFailed:
		return true
	}
	return false
}
