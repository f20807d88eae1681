// Package registry is the narrow interface over the hierarchical parameter
// store used as the cross-system source of truth for tenant readiness.
package registry

import (
	"context"
	"errors"
	"fmt"
)

// ErrParameterNotFound indicates the named parameter does not exist.
var ErrParameterNotFound = errors.New("parameter not found")

// Provisioning status values stored under the tenant namespace.
const (
	StatusCreating = "creating"
	StatusActive   = "active"
	StatusDeleting = "deleting"
	StatusDeleted  = "deleted"
	StatusFailed   = "failed"
	StatusPartial  = "partial"
)

// ParameterRegistry stores string parameters under a hierarchical namespace.
type ParameterRegistry interface {
	// Get returns the value of the named parameter. Returns
	// ErrParameterNotFound when absent.
	Get(ctx context.Context, name string) (string, error)

	// Put writes the named parameter, overwriting any existing value.
	Put(ctx context.Context, name, value string) error

	// Delete removes the named parameter. Deleting an absent parameter is
	// not an error.
	Delete(ctx context.Context, name string) error
}

// Tenant namespace paths.

func IsolationModePath(tenantID string) string {
	return fmt.Sprintf("/tenants/%s/isolation-mode", tenantID)
}

func ResourceNamePath(tenantID string) string {
	return fmt.Sprintf("/tenants/%s/storage/resource-name", tenantID)
}

func StatusPath(tenantID string) string {
	return fmt.Sprintf("/tenants/%s/provisioning-status", tenantID)
}

func VerifiedAtPath(tenantID string) string {
	return fmt.Sprintf("/tenants/%s/provisioning-verified-at", tenantID)
}
