package provisioner

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryProvisioner implements StackProvisioner using in-memory state.
// This implementation is for testing only. Tests drive stack transitions
// explicitly with SetStatus.
type MemoryProvisioner struct {
	mu     sync.RWMutex
	stacks map[string]*StackDescription

	// CreateErr, when set, is returned by CreateStack. Tests use it to
	// simulate provider failures.
	CreateErr error
}

// NewMemoryProvisioner creates a new in-memory stack provisioner.
func NewMemoryProvisioner() *MemoryProvisioner {
	return &MemoryProvisioner{stacks: make(map[string]*StackDescription)}
}

func (p *MemoryProvisioner) CreateStack(ctx context.Context, input StackInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.CreateErr != nil {
		return "", p.CreateErr
	}

	if existing, exists := p.stacks[input.StackName]; exists {
		return existing.StackID, nil
	}

	stackID := fmt.Sprintf("arn:aws:cloudformation:local:000000000000:stack/%s", input.StackName)
	p.stacks[input.StackName] = &StackDescription{
		StackID:      stackID,
		Status:       StatusCreating,
		StatusDetail: "CREATE_IN_PROGRESS",
		Outputs:      map[string]string{},
	}

	return stackID, nil
}

func (p *MemoryProvisioner) DescribeStack(ctx context.Context, stackName string) (*StackDescription, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stack, exists := p.stacks[stackName]
	if !exists {
		return nil, ErrStackNotFound
	}

	clone := *stack
	return &clone, nil
}

func (p *MemoryProvisioner) DeleteStack(ctx context.Context, stackName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stack, exists := p.stacks[stackName]
	if !exists {
		return nil
	}
	stack.Status = StatusDeleting
	stack.StatusDetail = "DELETE_IN_PROGRESS"

	return nil
}

func (p *MemoryProvisioner) WaitForCreate(ctx context.Context, stackName string, maxWait time.Duration) (*StackDescription, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stack, exists := p.stacks[stackName]
	if !exists {
		return nil, ErrStackNotFound
	}
	if stack.Status != StatusReady {
		return nil, fmt.Errorf("stack %s did not reach CREATE_COMPLETE: %s", stackName, stack.StatusDetail)
	}

	clone := *stack
	return &clone, nil
}

// SetStatus transitions a stack for tests, optionally setting outputs.
func (p *MemoryProvisioner) SetStatus(stackName string, status Status, detail string, outputs map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stack, exists := p.stacks[stackName]
	if !exists {
		stack = &StackDescription{
			StackID: fmt.Sprintf("arn:aws:cloudformation:local:000000000000:stack/%s", stackName),
			Outputs: map[string]string{},
		}
		p.stacks[stackName] = stack
	}

	stack.Status = status
	stack.StatusDetail = detail
	if outputs != nil {
		stack.Outputs = outputs
	}

	if status == StatusDeleted {
		delete(p.stacks, stackName)
	}
}
