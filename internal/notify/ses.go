package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

// SESNotifier sends messages through AWS SESv2.
type SESNotifier struct {
	client *sesv2.Client
	sender string
}

// NewSESNotifier creates a notifier sending from the given verified address.
func NewSESNotifier(client *sesv2.Client, sender string) *SESNotifier {
	return &SESNotifier{
		client: client,
		sender: sender,
	}
}

// Send delivers one message.
func (n *SESNotifier) Send(ctx context.Context, msg Message) error {
	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.sender),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", msg.To, err)
	}

	log.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("message sent")
	return nil
}
