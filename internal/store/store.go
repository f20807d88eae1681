// Package store defines the narrow interface over the single-table entity
// graph. Implementations live in the aws (DynamoDB) and memory subpackages.
package store

import (
	"context"
	"errors"

	"github.com/stackpilot/tenantctl/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrNotFound      = errors.New("item not found")
	ErrAlreadyExists = errors.New("item already exists")
	ErrThrottled     = errors.New("provider request throttled")
)

// EntityStore is the typed surface over the control-plane table. Items are
// arbitrary structs carrying dynamodbav tags; keys are always the composite
// (pk, sk) pair.
type EntityStore interface {
	// Get loads the item at key into out. Returns ErrNotFound when absent.
	Get(ctx context.Context, key models.Key, out any) error

	// Put writes an item unconditionally.
	Put(ctx context.Context, item any) error

	// Create writes an item only if no item exists at its key. Returns
	// ErrAlreadyExists on conflict, making concurrent duplicate creation a
	// detectable no-op rather than a race.
	Create(ctx context.Context, item any) error

	// Update applies the given attribute assignments to an existing item.
	// Returns ErrNotFound when the item is absent.
	Update(ctx context.Context, key models.Key, set map[string]any) error

	// Delete removes the item at key. Deleting an absent item is not an
	// error.
	Delete(ctx context.Context, key models.Key) error

	// Query loads all items sharing pk whose sort key begins with skPrefix
	// into out, which must be a pointer to a slice.
	Query(ctx context.Context, pk, skPrefix string, out any) error

	// FindByNaturalKey looks an item up on the (entity-type, natural-key)
	// secondary index, e.g. a user by email. Returns ErrNotFound when no
	// item matches.
	FindByNaturalKey(ctx context.Context, entityType, naturalKey string, out any) error

	// QueryOwned loads the items of one entity type owned by ownerPK from
	// the (owning-entity, entity-type) secondary index into out, which must
	// be a pointer to a slice.
	QueryOwned(ctx context.Context, ownerPK, entityType string, out any) error
}

// IsTransient reports whether err is worth retrying against the store.
func IsTransient(err error) bool {
	return errors.Is(err, ErrThrottled)
}
