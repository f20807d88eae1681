// Package workers holds the provisioning pipeline steps. Each worker is a
// pure function from request to result: stateless, idempotent under
// re-invocation, and sequenced by an external orchestrator that owns all
// inter-step ordering and retry decisions.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/stackpilot/tenantctl/internal/idp"
	"github.com/stackpilot/tenantctl/internal/notify"
	"github.com/stackpilot/tenantctl/internal/provisioner"
	"github.com/stackpilot/tenantctl/internal/registry"
	"github.com/stackpilot/tenantctl/internal/store"
)

// Worker names used in sequencer invocations and metrics.
const (
	WorkerRegisterOrProvision = "register-or-provision"
	WorkerPollStatus          = "poll-status"
	WorkerCreateAdmin         = "create-admin-identity"
	WorkerPostSignupSync      = "post-signup-sync"
	WorkerFinalizeAndVerify   = "finalize-and-verify"
	WorkerDeprovision         = "deprovision"
)

// Sequencer is the external workflow engine that composes workers. Workers
// never call it; it exists so callers that drive the pipeline (tests, the
// CLI) depend on the same contract the production orchestrator implements.
type Sequencer interface {
	// Invoke runs one named worker with the given input.
	Invoke(ctx context.Context, worker string, input any) (any, error)

	// WaitThenRetry sleeps between poll attempts, honouring ctx.
	WaitThenRetry(ctx context.Context, delay time.Duration) error
}

// Config holds the settings shared by the workers.
type Config struct {
	// Environment names the deployment (dev, staging, prod) and prefixes
	// per-tenant stack names.
	Environment string

	// SharedTableName is the table shared tenants register into.
	SharedTableName string

	// BillingMode is passed through to dedicated tenant stacks.
	BillingMode string

	// StackWaitTimeout bounds the blocking wait for stack creation.
	StackWaitTimeout time.Duration

	// AdminProviderGroup is the identity-provider group administrators are
	// added to. Empty skips the membership call.
	AdminProviderGroup string

	// DefaultProviderGroup is the identity-provider group self-service
	// signups are added to. Empty skips the membership call.
	DefaultProviderGroup string

	// SendCredentials gates the one-time credential notification.
	SendCredentials bool
}

// Workers bundles the adapters the pipeline steps run against. Identity and
// Notifier may be nil when no identity pool or message channel is configured.
type Workers struct {
	store       store.EntityStore
	registry    registry.ParameterRegistry
	provisioner provisioner.StackProvisioner
	identity    idp.IdentityProvider
	notifier    notify.Notifier
	cfg         Config
}

// New creates the worker set.
func New(st store.EntityStore, reg registry.ParameterRegistry, prov provisioner.StackProvisioner, identity idp.IdentityProvider, notifier notify.Notifier, cfg Config) *Workers {
	if cfg.BillingMode == "" {
		cfg.BillingMode = "PAY_PER_REQUEST"
	}
	if cfg.StackWaitTimeout == 0 {
		cfg.StackWaitTimeout = 15 * time.Minute
	}
	return &Workers{
		store:       st,
		registry:    reg,
		provisioner: prov,
		identity:    identity,
		notifier:    notifier,
		cfg:         cfg,
	}
}

// StackName returns the deterministic stack name for a tenant.
func (w *Workers) StackName(tenantID string) string {
	return fmt.Sprintf("tenant-%s-%s", w.cfg.Environment, tenantID)
}
