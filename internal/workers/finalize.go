package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stackpilot/tenantctl/internal/registry"
	"github.com/stackpilot/tenantctl/internal/telemetry"
	"github.com/stackpilot/tenantctl/internal/verify"
)

// FinalizeRequest is the input to the finalize-and-verify worker.
type FinalizeRequest struct {
	TenantID        string `json:"tenantId"`
	AdminEmail      string `json:"adminEmail,omitempty"`
	AdminGivenName  string `json:"adminGivenName,omitempty"`
	AdminFamilyName string `json:"adminFamilyName,omitempty"`
	CorrelationID   string `json:"correlationId"`
}

// FinalizeResult is the output of the finalize-and-verify worker.
type FinalizeResult struct {
	TenantID   string `json:"tenantId"`
	Status     string `json:"status"`
	Checks     int    `json:"checks"`
	Failures   int    `json:"failures"`
	Warnings   int    `json:"warnings"`
	Repaired   int    `json:"repaired"`
	VerifiedAt string `json:"verifiedAt"`
}

// FinalizeAndVerify is the last pipeline step. It runs the full verification
// with repair enabled, then records the outcome in the registry: status
// active when every required check passed, partial when some could not be
// repaired. The verification timestamp is written either way so operators can
// see when the tenant was last checked.
//
// The worker itself never fails on unrepaired checks; the partial status is
// the signal. Only adapter errors that prevent recording the outcome
// propagate.
func (w *Workers) FinalizeAndVerify(ctx context.Context, req FinalizeRequest) (result *FinalizeResult, err error) {
	started := time.Now()
	defer func() {
		telemetry.GetMetrics().RecordWorkerOutcome(ctx, WorkerFinalizeAndVerify, err != nil, started)
	}()

	engine := verify.NewEngine(w.store, w.registry, w.provisioner, w.identity, verify.Config{
		TenantID:        req.TenantID,
		Environment:     w.cfg.Environment,
		SharedTableName: w.cfg.SharedTableName,
		AdminEmail:      req.AdminEmail,
		AdminGivenName:  req.AdminGivenName,
		AdminFamilyName: req.AdminFamilyName,
	})

	report := engine.Run(ctx, verify.Options{
		Fix:                  true,
		WithIdentityProvider: w.identity != nil,
	})

	status := registry.StatusActive
	if report.Failures() > 0 {
		status = registry.StatusPartial
	}

	verifiedAt := time.Now().UTC().Format(time.RFC3339)
	if err = w.registry.Put(ctx, registry.StatusPath(req.TenantID), status); err != nil {
		return nil, err
	}
	if err = w.registry.Put(ctx, registry.VerifiedAtPath(req.TenantID), verifiedAt); err != nil {
		return nil, err
	}

	log.Info().
		Str("tenant_id", req.TenantID).
		Str("correlation_id", req.CorrelationID).
		Str("status", status).
		Int("failures", report.Failures()).
		Int("repaired", report.Repaired).
		Msg("tenant verification finalized")

	return &FinalizeResult{
		TenantID:   req.TenantID,
		Status:     status,
		Checks:     len(report.Results),
		Failures:   report.Failures(),
		Warnings:   report.Warnings(),
		Repaired:   report.Repaired,
		VerifiedAt: verifiedAt,
	}, nil
}
