package mergequeue

import (
	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
)

var (
	logEventEntryEnqueued = logfields.Event("queue_entry_enqueued")
	logEventEntryDequeued = logfields.Event("queue_entry_dequeued")
	logEventEntryRequeued = logfields.Event("queue_entry_requeued")
	logEventCheckStarted  = logfields.Event("speculative_check_started")
	logEventMerged        = logfields.Event("pull_request_merged")
)

func logFieldReason(reason string) zap.Field {
	return zap.String("reason", reason)
}
