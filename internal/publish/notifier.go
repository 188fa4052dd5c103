package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

// PublishedEvent describes a successful post.
type PublishedEvent struct {
	MediaID     string    `json:"mediaId"`
	FileIDs     []string  `json:"fileIds"`
	Caption     string    `json:"caption"`
	LocationID  string    `json:"locationId,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Notifier is told about successful posts. Failures never affect the post.
type Notifier interface {
	Published(ctx context.Context, event PublishedEvent) error
}

type putEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeNotifier emits a "PhotoPublished" event per post.
type EventBridgeNotifier struct {
	client  putEventsAPI
	busName string
}

var _ Notifier = (*EventBridgeNotifier)(nil)

const (
	eventSource     = "autopost"
	eventDetailType = "PhotoPublished"
)

// NewEventBridgeNotifier sends to busName (empty means the default bus).
func NewEventBridgeNotifier(client *eventbridge.Client, busName string) *EventBridgeNotifier {
	return &EventBridgeNotifier{client: client, busName: busName}
}

func (n *EventBridgeNotifier) Published(ctx context.Context, event PublishedEvent) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal PublishedEvent: %w", err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(eventSource),
		DetailType: aws.String(eventDetailType),
		Detail:     aws.String(string(detail)),
	}
	if n.busName != "" {
		entry.EventBusName = aws.String(n.busName)
	}

	result, err := n.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}
	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
	}

	log.Debug().Str("mediaId", event.MediaID).Msg("PhotoPublished emitted to EventBridge")
	return nil
}
