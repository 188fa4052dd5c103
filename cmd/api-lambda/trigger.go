package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/autopost/internal/scheduler"
	"github.com/fpang/autopost/internal/store"
)

const (
	eventSource        = "autopost"
	runRequestedDetail = "RunRequested"
)

type putEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// eventTrigger implements api.Scheduler for the Lambda deployment.
type eventTrigger struct {
	client putEventsAPI
	store  *store.Store
	loc    *time.Location
	bus    string
}

// Reschedule is a no-op: the EventBridge rule owns the cadence and the tick
// Lambda reads enabled/folder settings from the stored config.
func (t *eventTrigger) Reschedule(cfg store.ScheduleConfig) error {
	log.Info().Str("spec", scheduler.CronSpec(cfg)).Bool("enabled", cfg.Enabled).
		Msg("Schedule saved; the EventBridge rule must match this spec")
	return nil
}

func (t *eventTrigger) TriggerNow() bool {
	if t.client == nil {
		return false
	}
	detail, _ := json.Marshal(map[string]string{"requestedAt": time.Now().UTC().Format(time.RFC3339)})
	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:       aws.String(eventSource),
		DetailType:   aws.String(runRequestedDetail),
		Detail:       aws.String(string(detail)),
		EventBusName: aws.String(t.bus),
	}
	out, err := t.client.PutEvents(context.Background(), &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil || out.FailedEntryCount > 0 {
		log.Error().Err(err).Msg("Failed to send RunRequested event")
		return false
	}
	return true
}

func (t *eventTrigger) NextRun() *time.Time {
	cfg := t.store.LoadConfig(context.Background()).Value
	return scheduler.NextFire(cfg, t.loc, time.Now())
}

func (t *eventTrigger) Location() *time.Location { return t.loc }
