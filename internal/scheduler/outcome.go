package scheduler

import "errors"

// ErrNoFolder means scheduling is enabled but no source folder is set.
var ErrNoFolder = errors.New("no folder_id configured: set one in the schedule config")

// Outcome is how a scheduled tick ended.
type Outcome int

const (
	OutcomeDisabled Outcome = iota
	OutcomeNoFolder
	OutcomeListFailed
	OutcomeNoCandidates
	OutcomeComposeFailed
	OutcomePublished
	OutcomePublishFailed
	OutcomeQueued
	OutcomeQueueFailed
	OutcomeBusy
)

var outcomeNames = [...]string{
	OutcomeDisabled:      "disabled",
	OutcomeNoFolder:      "no_folder",
	OutcomeListFailed:    "list_failed",
	OutcomeNoCandidates:  "no_candidates",
	OutcomeComposeFailed: "compose_failed",
	OutcomePublished:     "published",
	OutcomePublishFailed: "publish_failed",
	OutcomeQueued:        "queued",
	OutcomeQueueFailed:   "queue_failed",
	OutcomeBusy:          "busy",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}
