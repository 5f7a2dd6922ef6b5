package contracts

// Exchanges
const (
	ExchangeMatchingTopic = "matching_topic"
	ExchangeNotifyTopic   = "notify_topic"
)

// Queues
const (
	QueueMatchingCommands = "matching_commands"
	QueueMatchingSeeds    = "matching_seeds"
	QueueMatchingRetry    = "matching_retry"
	QueueDeadLetter       = "matching_dead_letter"
	QueueNotifications    = "matching_notifications"

	// Delay queues: messages sit here until the queue-level TTL elapses, then
	// dead-letter back into QueueMatchingCommands. One queue per fixed window
	// so head-of-line expiry order is always correct.
	QueueDelayDriverResponse = "matching_delay_driver_response"
	QueueDelayBroadcast      = "matching_delay_broadcast"
)

// Routing patterns
const (
	RouteMatchingCommandPrefix = "matching.command." // {command_type}
	RouteMatchingSeed          = "matching.seed"
	RouteNotifyDriverPrefix    = "notify.driver." // {driver_id}
	RouteNotifyRiderPrefix     = "notify.rider."  // {rider_id}
)
