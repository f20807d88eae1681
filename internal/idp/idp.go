// Package idp is the narrow interface over the external identity provider.
// Accounts are keyed by email; the provider's subject id is mirrored back
// into the key-value store's user records.
package idp

import (
	"context"
	"errors"
)

// Sentinel errors for common error conditions
var (
	ErrAccountNotFound = errors.New("identity account not found")
	ErrAccountExists   = errors.New("identity account already exists")
)

// Attributes are the custom attributes that must stay consistent with the
// key-value-store user record.
type Attributes struct {
	TenantID     string
	EnterpriseID string
	RoleName     string
}

// Account is the provider-neutral view of one identity.
type Account struct {
	SubjectID  string
	Email      string
	GivenName  string
	FamilyName string
	Attributes Attributes
	Enabled    bool
}

// IdentityProvider manages identity accounts and their group membership.
type IdentityProvider interface {
	// GetAccount returns the account for an email. Returns
	// ErrAccountNotFound when absent.
	GetAccount(ctx context.Context, email string) (*Account, error)

	// CreateAccount creates an account with the given temporary password,
	// which is immediately made permanent so the first login has no reset
	// friction. Returns the provider subject id, or ErrAccountExists.
	CreateAccount(ctx context.Context, account Account, password string) (string, error)

	// UpdateAttributes overwrites the custom attributes for an email.
	UpdateAttributes(ctx context.Context, email string, attrs Attributes) error

	// AddToGroup adds the account to a provider group. Adding an existing
	// member is not an error.
	AddToGroup(ctx context.Context, email, group string) error

	// RemoveFromGroup removes the account from a provider group.
	RemoveFromGroup(ctx context.Context, email, group string) error

	// ListGroups returns the names of the groups the account belongs to.
	ListGroups(ctx context.Context, email string) ([]string, error)
}
