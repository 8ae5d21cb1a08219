package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/stashspace/stashspace/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyDispatch fans a committed status change out to its
	// recipients.
	TaskNotifyDispatch = "notify:dispatch"
	// TaskOffersExpire sweeps sent offers past their validity window.
	TaskOffersExpire = "offers:expire"
)

// NewNotifyDispatchTask constructs an Asynq task for one status event.
func NewNotifyDispatchTask(evt notify.Event) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyDispatch, data), nil
}

// NewOffersExpireTask constructs the scheduled expiry sweep task.
func NewOffersExpireTask() *asynq.Task {
	return asynq.NewTask(TaskOffersExpire, nil)
}
