package notify

import (
	"context"
	"sync"
)

// MemoryNotifier records sent messages for tests.
type MemoryNotifier struct {
	mu       sync.Mutex
	messages []Message

	// SendErr, when set, is returned by Send. Tests use it to verify that
	// notification failures never propagate.
	SendErr error
}

// NewMemoryNotifier creates a new in-memory notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (n *MemoryNotifier) Send(ctx context.Context, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.SendErr != nil {
		return n.SendErr
	}
	n.messages = append(n.messages, msg)

	return nil
}

// Messages returns a copy of the messages sent so far.
func (n *MemoryNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}
