// Package provisioner is the narrow interface over the infrastructure stack
// service that creates and destroys per-tenant storage.
package provisioner

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrStackNotFound indicates the named stack does not exist.
var ErrStackNotFound = errors.New("stack not found")

// Status is the small internal status enum derived from provider-specific
// stack status strings.
type Status string

const (
	StatusReady    Status = "READY"
	StatusCreating Status = "CREATING"
	StatusDeleting Status = "DELETING"
	StatusDeleted  Status = "DELETED"
	StatusFailed   Status = "FAILED"
)

// Well-known stack output keys.
const (
	OutputResourceName    = "ResourceName"
	OutputResourceArn     = "ResourceArn"
	OutputChangeStreamArn = "ChangeStreamArn"
)

// StackInput carries the parameters for a tenant stack.
type StackInput struct {
	StackName   string
	TenantID    string
	TenantName  string
	Environment string
	BillingMode string
}

// StackDescription is the provider-neutral view of one stack.
type StackDescription struct {
	StackID      string
	Status       Status
	StatusDetail string
	Outputs      map[string]string
}

// StackProvisioner creates, describes and deletes named infrastructure
// stacks.
type StackProvisioner interface {
	// CreateStack starts creation of a tenant stack and returns its id.
	CreateStack(ctx context.Context, input StackInput) (string, error)

	// DescribeStack returns the current state of a stack. Returns
	// ErrStackNotFound when the stack does not exist.
	DescribeStack(ctx context.Context, stackName string) (*StackDescription, error)

	// DeleteStack starts deletion of a stack. Deleting an absent stack is
	// not an error.
	DeleteStack(ctx context.Context, stackName string) error

	// WaitForCreate blocks until the stack reaches a terminal create state
	// or maxWait elapses, then returns its description.
	WaitForCreate(ctx context.Context, stackName string, maxWait time.Duration) (*StackDescription, error)
}

// MapStatus maps a provider stack status string to the internal enum.
// Any status containing FAILED, and rollback-complete states, are failures;
// remaining in-progress states are CREATING or DELETING depending on whether
// the status mentions deletion.
func MapStatus(providerStatus string) Status {
	switch providerStatus {
	case "CREATE_COMPLETE", "UPDATE_COMPLETE":
		return StatusReady
	case "DELETE_COMPLETE":
		return StatusDeleted
	case "ROLLBACK_COMPLETE", "UPDATE_ROLLBACK_COMPLETE":
		return StatusFailed
	}

	if strings.Contains(providerStatus, "FAILED") {
		return StatusFailed
	}
	if strings.Contains(providerStatus, "DELETE") {
		return StatusDeleting
	}
	return StatusCreating
}
