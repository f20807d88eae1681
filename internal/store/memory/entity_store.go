// Package memory holds an in-memory store.EntityStore used by tests and
// local development. Items are stored in marshaled attribute-value form so
// the fake exercises the same dynamodbav tags as the DynamoDB store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/store"
)

type item map[string]types.AttributeValue

// EntityStore implements store.EntityStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type EntityStore struct {
	mu    sync.RWMutex
	items map[models.Key]item
}

// NewEntityStore creates a new in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		items: make(map[models.Key]item),
	}
}

// Get retrieves the item at key.
func (s *EntityStore) Get(ctx context.Context, key models.Key, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, exists := s.items[key]
	if !exists {
		return store.ErrNotFound
	}

	return unmarshal(it, out)
}

// Put stores an item unconditionally.
func (s *EntityStore) Put(ctx context.Context, v any) error {
	it, key, err := marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = it

	return nil
}

// Create stores an item only if its key is unused.
func (s *EntityStore) Create(ctx context.Context, v any) error {
	it, key, err := marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; exists {
		return store.ErrAlreadyExists
	}
	s.items[key] = it

	return nil
}

// Update applies attribute assignments to an existing item.
func (s *EntityStore) Update(ctx context.Context, key models.Key, set map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, exists := s.items[key]
	if !exists {
		return store.ErrNotFound
	}

	for name, value := range set {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal attribute %s: %w", name, err)
		}
		it[name] = av
	}

	return nil
}

// Delete removes the item at key. Absent items are a no-op.
func (s *EntityStore) Delete(ctx context.Context, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Query loads items sharing pk whose sort key begins with skPrefix.
func (s *EntityStore) Query(ctx context.Context, pk, skPrefix string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []item
	for key, it := range s.items {
		if key.PK == pk && strings.HasPrefix(key.SK, skPrefix) {
			matched = append(matched, it)
		}
	}

	return unmarshalList(sortBy(matched, "sk"), out)
}

// FindByNaturalKey looks an item up by its (entity-type, natural-key) index
// attributes.
func (s *EntityStore) FindByNaturalKey(ctx context.Context, entityType, naturalKey string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, it := range s.items {
		if stringAttr(it, "gsi1pk") == entityType && stringAttr(it, "gsi1sk") == naturalKey {
			return unmarshal(it, out)
		}
	}

	return store.ErrNotFound
}

// QueryOwned loads items of one entity type owned by ownerPK.
func (s *EntityStore) QueryOwned(ctx context.Context, ownerPK, entityType string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []item
	for _, it := range s.items {
		if stringAttr(it, "gsi2pk") == ownerPK && strings.HasPrefix(stringAttr(it, "gsi2sk"), entityType+"#") {
			matched = append(matched, it)
		}
	}

	return unmarshalList(sortBy(matched, "gsi2sk"), out)
}

// Len reports the number of stored items.
func (s *EntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func marshal(v any) (item, models.Key, error) {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, models.Key{}, fmt.Errorf("failed to marshal item: %w", err)
	}

	key := models.Key{PK: stringAttr(av, "pk"), SK: stringAttr(av, "sk")}
	if key.PK == "" || key.SK == "" {
		return nil, models.Key{}, fmt.Errorf("item is missing pk/sk attributes")
	}

	return av, key, nil
}

func unmarshal(it item, out any) error {
	if err := attributevalue.UnmarshalMap(it, out); err != nil {
		return fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return nil
}

func unmarshalList(items []item, out any) error {
	converted := make([]map[string]types.AttributeValue, len(items))
	for i, it := range items {
		converted[i] = it
	}
	if err := attributevalue.UnmarshalListOfMaps(converted, out); err != nil {
		return fmt.Errorf("failed to unmarshal items: %w", err)
	}
	return nil
}

func stringAttr(it item, name string) string {
	if av, ok := it[name].(*types.AttributeValueMemberS); ok {
		return av.Value
	}
	return ""
}

func sortBy(items []item, attr string) []item {
	sort.Slice(items, func(i, j int) bool {
		return stringAttr(items[i], attr) < stringAttr(items[j], attr)
	})
	return items
}
