package rabbitmq

import (
	"fmt"

	"campus-rides/internal/general/config"
	"campus-rides/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declareTopology(ch *amqp.Channel, cfg *config.Config) error {
	// 1. Exchanges
	exchanges := []struct {
		name string
		kind string
	}{
		{contracts.ExchangeMatchingTopic, "topic"},
		{contracts.ExchangeNotifyTopic, "topic"},
	}

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	// 2. Queues
	//
	// The command queue dead-letters rejected deliveries into the retry queue;
	// the retry queue holds them for the configured delay and dead-letters them
	// back, incrementing the x-death count each cycle. The delay queues are the
	// timeout mechanism: a command parked there re-enters the command queue
	// after the queue-level TTL elapses. All dead-letter hops go through the
	// default exchange so the target is addressed by queue name.
	queues := []struct {
		name string
		args amqp.Table
	}{
		{contracts.QueueMatchingCommands, amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": contracts.QueueMatchingRetry,
		}},
		{contracts.QueueMatchingRetry, amqp.Table{
			"x-message-ttl":             int64(cfg.RetryDelay().Milliseconds()),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": contracts.QueueMatchingCommands,
		}},
		{contracts.QueueDelayDriverResponse, amqp.Table{
			"x-message-ttl":             int64(cfg.DriverResponseWindow().Milliseconds()),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": contracts.QueueMatchingCommands,
		}},
		{contracts.QueueDelayBroadcast, amqp.Table{
			"x-message-ttl":             int64(cfg.BroadcastWindow().Milliseconds()),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": contracts.QueueMatchingCommands,
		}},
		{contracts.QueueMatchingSeeds, nil},
		{contracts.QueueDeadLetter, nil},
		{contracts.QueueNotifications, nil},
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	// 3. Bindings
	bindings := []struct {
		queue      string
		exchange   string
		routingKey string
	}{
		{contracts.QueueMatchingCommands, contracts.ExchangeMatchingTopic, contracts.RouteMatchingCommandPrefix + "*"},
		{contracts.QueueMatchingSeeds, contracts.ExchangeMatchingTopic, contracts.RouteMatchingSeed},
		{contracts.QueueNotifications, contracts.ExchangeNotifyTopic, "notify.#"},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
