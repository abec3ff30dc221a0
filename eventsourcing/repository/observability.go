package repository

const (
	logMsgAggregateLoaded          = "aggregate loaded"
	logMsgAggregateLoadedFromCache = "aggregate loaded from cache"
	logMsgAggregateSaved           = "aggregate saved"
	logMsgLoadFailed               = "loading aggregate failed"
	logMsgAppendFailed             = "appending events failed, uncommitted events are kept"
	logMsgPublishFailed            = "publishing committed events failed"
	logMsgConcurrencyConflict      = "concurrency conflict detected"
	logMsgReleaseLockFailed        = "releasing lock failed"
	logAttrAggregateType           = "aggregate_type"
	logAttrAggregateID             = "aggregate_id"
	logAttrEventCount              = "event_count"
	logAttrDurationMS              = "duration_ms"
	logAttrLockingStrategy         = "locking_strategy"
	operationLoad                  = "load"
	operationSave                  = "save"
	spanNameLoad                   = "repository.load"
	spanNameSave                   = "repository.save"
	metricLoadDuration             = "repository_load_duration_seconds"
	metricSaveDuration             = "repository_save_duration_seconds"
	metricConcurrencyConflicts     = "repository_concurrency_conflicts_total"
	metricEventsSaved              = "repository_events_saved_total"
	metricCacheHits                = "repository_cache_hits_total"
	errorTypeNotFound              = "not_found"
	errorTypeStorage               = "storage"
	errorTypeLock                  = "lock"
	errorTypeInitialize            = "initialize"
	errorTypePublish               = "publish"
)
