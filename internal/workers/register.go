package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/provisioner"
	"github.com/stackpilot/tenantctl/internal/registry"
	"github.com/stackpilot/tenantctl/internal/retry"
	"github.com/stackpilot/tenantctl/internal/telemetry"
)

// ProvisionRequest is the input to the register-or-provision worker.
type ProvisionRequest struct {
	TenantID      string               `json:"tenantId"`
	TenantName    string               `json:"tenantName"`
	Isolation     models.IsolationMode `json:"isolationMode"`
	CorrelationID string               `json:"correlationId"`
}

// ProvisionResult is the output of the register-or-provision worker.
type ProvisionResult struct {
	TenantID     string `json:"tenantId"`
	Status       string `json:"status"`
	ResourceName string `json:"resourceName,omitempty"`
	ResourceArn  string `json:"resourceArn,omitempty"`
	StackID      string `json:"stackId,omitempty"`
}

// RegisterOrProvision registers a shared tenant into the shared table, or
// provisions a dedicated stack and blocks (bounded) until it completes.
// Non-transient provisioner errors propagate; the sequencer marks the
// execution failed.
func (w *Workers) RegisterOrProvision(ctx context.Context, req ProvisionRequest) (result *ProvisionResult, err error) {
	started := time.Now()
	defer func() {
		telemetry.GetMetrics().RecordWorkerOutcome(ctx, WorkerRegisterOrProvision, err != nil, started)
	}()

	logger := log.With().
		Str("tenant_id", req.TenantID).
		Str("isolation", string(req.Isolation)).
		Str("correlation_id", req.CorrelationID).
		Logger()

	switch req.Isolation {
	case models.IsolationShared:
		result, err = w.registerShared(ctx, req)
	case models.IsolationDedicated:
		result, err = w.provisionDedicated(ctx, req)
	default:
		return nil, fmt.Errorf("unknown isolation mode %q", req.Isolation)
	}
	if err != nil {
		logger.Error().Err(err).Msg("tenant provisioning failed")
		return nil, err
	}

	logger.Info().Str("status", result.Status).Msg("tenant provisioning step complete")
	return result, nil
}

// registerShared records the tenant against the shared table. No
// infrastructure call is made.
func (w *Workers) registerShared(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	tenantID := req.TenantID

	if err := w.registry.Put(ctx, registry.IsolationModePath(tenantID), string(models.IsolationShared)); err != nil {
		return nil, err
	}
	if err := w.registry.Put(ctx, registry.ResourceNamePath(tenantID), w.cfg.SharedTableName); err != nil {
		return nil, err
	}
	if err := w.registry.Put(ctx, registry.StatusPath(tenantID), registry.StatusActive); err != nil {
		return nil, err
	}

	return &ProvisionResult{
		TenantID:     tenantID,
		Status:       registry.StatusActive,
		ResourceName: w.cfg.SharedTableName,
	}, nil
}

// provisionDedicated creates a dedicated stack for the tenant and waits for
// completion.
func (w *Workers) provisionDedicated(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	tenantID := req.TenantID
	stackName := w.StackName(tenantID)

	if err := w.registry.Put(ctx, registry.IsolationModePath(tenantID), string(models.IsolationDedicated)); err != nil {
		return nil, err
	}
	if err := w.registry.Put(ctx, registry.StatusPath(tenantID), registry.StatusCreating); err != nil {
		return nil, err
	}

	stackID, err := retry.DoValue(ctx, func() (string, error) {
		return w.provisioner.CreateStack(ctx, provisioner.StackInput{
			StackName:   stackName,
			TenantID:    tenantID,
			TenantName:  req.TenantName,
			Environment: w.cfg.Environment,
			BillingMode: w.cfg.BillingMode,
		})
	}, provisioner.IsTransient)
	if err != nil {
		return nil, fmt.Errorf("stack creation failed: %w", err)
	}

	desc, err := w.provisioner.WaitForCreate(ctx, stackName, w.cfg.StackWaitTimeout)
	if err != nil {
		return nil, err
	}

	resourceName := desc.Outputs[provisioner.OutputResourceName]
	resourceArn := desc.Outputs[provisioner.OutputResourceArn]

	if err := w.registry.Put(ctx, registry.ResourceNamePath(tenantID), resourceName); err != nil {
		return nil, err
	}
	if err := w.registry.Put(ctx, registry.StatusPath(tenantID), registry.StatusActive); err != nil {
		return nil, err
	}

	return &ProvisionResult{
		TenantID:     tenantID,
		Status:       registry.StatusActive,
		ResourceName: resourceName,
		ResourceArn:  resourceArn,
		StackID:      stackID,
	}, nil
}

// DeprovisionRequest is the input to the deprovision worker.
type DeprovisionRequest struct {
	TenantID  string               `json:"tenantId"`
	Isolation models.IsolationMode `json:"isolationMode"`
}

// DeprovisionResult is the output of the deprovision worker.
type DeprovisionResult struct {
	TenantID string `json:"tenantId"`
	Status   string `json:"status"`
}

// Deprovision starts tear-down of a tenant. For dedicated tenants it starts
// stack deletion and records status deleting; PollStatus then tracks the
// deletion to DELETED. Shared tenants have no infrastructure, so their
// registration is marked deleted immediately. A resource that is already
// absent counts as success.
func (w *Workers) Deprovision(ctx context.Context, req DeprovisionRequest) (result *DeprovisionResult, err error) {
	started := time.Now()
	defer func() {
		telemetry.GetMetrics().RecordWorkerOutcome(ctx, WorkerDeprovision, err != nil, started)
	}()

	tenantID := req.TenantID

	if req.Isolation == models.IsolationShared {
		if err := w.registry.Put(ctx, registry.StatusPath(tenantID), registry.StatusDeleted); err != nil {
			return nil, err
		}
		return &DeprovisionResult{TenantID: tenantID, Status: registry.StatusDeleted}, nil
	}

	if err := w.registry.Put(ctx, registry.StatusPath(tenantID), registry.StatusDeleting); err != nil {
		return nil, err
	}

	if err := retry.Do(ctx, func() error {
		return w.provisioner.DeleteStack(ctx, w.StackName(tenantID))
	}, provisioner.IsTransient); err != nil {
		return nil, fmt.Errorf("stack deletion failed: %w", err)
	}

	log.Info().Str("tenant_id", tenantID).Msg("tenant deprovisioning started")
	return &DeprovisionResult{TenantID: tenantID, Status: registry.StatusDeleting}, nil
}
