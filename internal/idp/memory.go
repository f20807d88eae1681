package idp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryProvider implements IdentityProvider using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type MemoryProvider struct {
	mu       sync.RWMutex
	accounts map[string]*Account        // email -> account
	groups   map[string]map[string]bool // email -> group set
}

// NewMemoryProvider creates a new in-memory identity provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		accounts: make(map[string]*Account),
		groups:   make(map[string]map[string]bool),
	}
}

func (p *MemoryProvider) GetAccount(ctx context.Context, email string) (*Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	account, exists := p.accounts[email]
	if !exists {
		return nil, ErrAccountNotFound
	}

	clone := *account
	return &clone, nil
}

func (p *MemoryProvider) CreateAccount(ctx context.Context, account Account, password string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accounts[account.Email]; exists {
		return "", ErrAccountExists
	}

	clone := account
	clone.SubjectID = uuid.NewString()
	clone.Enabled = true
	p.accounts[account.Email] = &clone
	p.groups[account.Email] = make(map[string]bool)

	return clone.SubjectID, nil
}

func (p *MemoryProvider) UpdateAttributes(ctx context.Context, email string, attrs Attributes) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, exists := p.accounts[email]
	if !exists {
		return ErrAccountNotFound
	}
	account.Attributes = attrs

	return nil
}

func (p *MemoryProvider) AddToGroup(ctx context.Context, email, group string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accounts[email]; !exists {
		return fmt.Errorf("add to group %s: %w", group, ErrAccountNotFound)
	}
	p.groups[email][group] = true

	return nil
}

func (p *MemoryProvider) RemoveFromGroup(ctx context.Context, email, group string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accounts[email]; !exists {
		return fmt.Errorf("remove from group %s: %w", group, ErrAccountNotFound)
	}
	delete(p.groups[email], group)

	return nil
}

func (p *MemoryProvider) ListGroups(ctx context.Context, email string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, exists := p.accounts[email]; !exists {
		return nil, ErrAccountNotFound
	}

	var groups []string
	for group := range p.groups[email] {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	return groups, nil
}
