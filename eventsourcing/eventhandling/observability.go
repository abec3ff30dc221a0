package eventhandling

const (
	logMsgHandlerFailed       = "event handler failed"
	logMsgHandlerPanicked     = "event handler panicked"
	logMsgEventRejected       = "event was rejected by the executor"
	logMsgYieldRejected       = "yielding was rejected, draining in place"
	logMsgTaskPanicked        = "worker pool task panicked"
	logMsgBatchFailed         = "event batch failed and was dropped"
	logMsgBatchRetry          = "event batch failed with a transient error, retrying"
	logMsgBatchCommitted      = "event batch committed"
	logAttrListener           = "listener"
	logAttrEventType          = "event_type"
	logAttrEventID            = "event_id"
	logAttrAggregateID        = "aggregate_id"
	logAttrPanic              = "panic"
	logAttrBatchSize          = "batch_size"
	logAttrAttempt            = "attempt"
	logAttrDelayMS            = "delay_ms"
	logAttrDurationMS         = "duration_ms"
	operationPublish          = "publish"
	operationHandle           = "handle"
	operationBatch            = "batch"
	spanNameHandle            = "eventbus.handle"
	spanNameBatch             = "eventhandling.batch"
	metricEventsPublished     = "eventbus_events_published_total"
	metricEventsRejected      = "eventbus_events_rejected_total"
	metricHandlerDuration     = "eventbus_handler_duration_seconds"
	metricHandlerFailures     = "eventbus_handler_failures_total"
	metricSchedulerYields     = "eventbus_scheduler_yields_total"
	metricBatchDuration       = "eventhandling_batch_duration_seconds"
	metricBatchSize           = "eventhandling_batch_size"
	metricBatchRetries        = "eventhandling_batch_retries_total"
	metricBatchesDropped      = "eventhandling_batches_dropped_total"
	labelListener             = "listener"
	labelYield                = "yield"
	yieldResubmitted          = "resubmitted"
	yieldInPlace              = "in_place"
	errorTypeHandler          = "handler"
	errorTypePanic            = "panic"
	errorTypeRejected         = "rejected"
	errorTypeTransient        = "transient"
	errorTypePermanent        = "permanent"
	errorTypeRetriesExhausted = "retries_exhausted"
	errorTypeContextDone      = "context_done"
)
