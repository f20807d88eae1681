package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/provisioner"
	"github.com/stackpilot/tenantctl/internal/registry"
	"github.com/stackpilot/tenantctl/internal/telemetry"
)

// PollRequest is the input to the poll-status worker. PriorStatus is the
// status the caller last observed; it disambiguates a missing registry
// parameter during deletion.
type PollRequest struct {
	TenantID    string               `json:"tenantId"`
	Isolation   models.IsolationMode `json:"isolationMode"`
	PriorStatus provisioner.Status   `json:"priorStatus,omitempty"`
}

// PollResult is the output of the poll-status worker.
type PollResult struct {
	TenantID     string             `json:"tenantId"`
	Status       provisioner.Status `json:"status"`
	Detail       string             `json:"detail,omitempty"`
	ResourceName string             `json:"resourceName,omitempty"`
}

// registryStatusMap maps registry status strings to the internal enum for
// shared tenants.
var registryStatusMap = map[string]provisioner.Status{
	registry.StatusActive:   provisioner.StatusReady,
	registry.StatusCreating: provisioner.StatusCreating,
	registry.StatusDeleting: provisioner.StatusDeleting,
	registry.StatusDeleted:  provisioner.StatusDeleted,
	registry.StatusFailed:   provisioner.StatusFailed,
}

// PollStatus performs exactly one status check and returns. It never sleeps;
// the sequencer owns the wait-then-poll loop.
func (w *Workers) PollStatus(ctx context.Context, req PollRequest) (result *PollResult, err error) {
	started := time.Now()
	defer func() {
		telemetry.GetMetrics().RecordWorkerOutcome(ctx, WorkerPollStatus, err != nil, started)
	}()

	if req.Isolation == models.IsolationShared {
		return w.pollShared(ctx, req)
	}
	return w.pollDedicated(ctx, req)
}

// pollShared derives status purely from the registry status parameter.
func (w *Workers) pollShared(ctx context.Context, req PollRequest) (*PollResult, error) {
	value, err := w.registry.Get(ctx, registry.StatusPath(req.TenantID))
	if err != nil {
		if errors.Is(err, registry.ErrParameterNotFound) {
			// A missing parameter during deletion means cleanup already
			// removed it; any other time the tenant is still being set up.
			if req.PriorStatus == provisioner.StatusDeleting {
				return &PollResult{TenantID: req.TenantID, Status: provisioner.StatusDeleted}, nil
			}
			return &PollResult{TenantID: req.TenantID, Status: provisioner.StatusCreating}, nil
		}
		return nil, err
	}

	status, ok := registryStatusMap[value]
	if !ok {
		return nil, fmt.Errorf("unknown provisioning status %q for tenant %s", value, req.TenantID)
	}

	return &PollResult{TenantID: req.TenantID, Status: status, Detail: value}, nil
}

// pollDedicated derives status from a live describe call on the tenant
// stack. On first READY the extracted resource name and active status are
// persisted to the registry; the writes are idempotent so repeated READY
// polls are non-mutating in effect.
func (w *Workers) pollDedicated(ctx context.Context, req PollRequest) (*PollResult, error) {
	desc, err := w.provisioner.DescribeStack(ctx, w.StackName(req.TenantID))
	if err != nil {
		if errors.Is(err, provisioner.ErrStackNotFound) {
			return &PollResult{TenantID: req.TenantID, Status: provisioner.StatusDeleted}, nil
		}
		return nil, err
	}

	result := &PollResult{
		TenantID: req.TenantID,
		Status:   desc.Status,
		Detail:   desc.StatusDetail,
	}

	switch desc.Status {
	case provisioner.StatusReady:
		result.ResourceName = desc.Outputs[provisioner.OutputResourceName]
		if err := w.registry.Put(ctx, registry.ResourceNamePath(req.TenantID), result.ResourceName); err != nil {
			return nil, err
		}
		if err := w.registry.Put(ctx, registry.StatusPath(req.TenantID), registry.StatusActive); err != nil {
			return nil, err
		}
	case provisioner.StatusDeleted:
		if err := w.registry.Put(ctx, registry.StatusPath(req.TenantID), registry.StatusDeleted); err != nil {
			return nil, err
		}
	case provisioner.StatusFailed:
		log.Warn().
			Str("tenant_id", req.TenantID).
			Str("detail", desc.StatusDetail).
			Msg("tenant stack in failed state")
		if err := w.registry.Put(ctx, registry.StatusPath(req.TenantID), registry.StatusFailed); err != nil {
			return nil, err
		}
	}

	return result, nil
}
