// Package notify sends transactional messages. Delivery is strictly
// best-effort: callers log failures and never let them fail the operation
// that triggered the message.
package notify

import "context"

// Message is a single transactional message.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier sends a single message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
