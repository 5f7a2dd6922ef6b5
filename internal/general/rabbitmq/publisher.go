package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campus-rides/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublishMessage publishes a persistent JSON message to an exchange and waits
// for the broker confirm.
func (client *Client) PublishMessage(exchange, routingKey string, body []byte) error {
	return client.publish(exchange, routingKey, true, body, nil)
}

// PublishToQueue publishes directly to a queue through the default exchange.
// Used for the delay queues, which are addressed by queue name rather than by
// a topic binding.
func (client *Client) PublishToQueue(queue string, body []byte) error {
	// mandatory=false: default-exchange routing to a declared queue cannot be unroutable
	return client.publish("", queue, false, body, nil)
}

// ForwardToQueue re-publishes a raw delivery to a queue through the default
// exchange, preserving the original headers so the x-death history survives
// the hop into the dead-letter queue.
func (client *Client) ForwardToQueue(queue string, body []byte, headers amqp.Table) error {
	return client.publish("", queue, false, body, headers)
}

func (client *Client) publish(exchange, routingKey string, mandatory bool, body []byte, headers amqp.Table) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	// quick fail if no channel
	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ch.PublishWithContext(ctx, exchange, routingKey, mandatory, false, /* immediate */
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers:      headers,
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case c := <-confirms:
		if !c.Ack {
			return fmt.Errorf("rabbitmq: publish not acknowledged")
		}
	case <-ctx.Done():
		// keep the confirm stream aligned: try to consume exactly one confirm even if we return a timeout to the caller
		select {
		case c := <-confirms:
			// if we got a confirm now, return an error if it was a nack
			if !c.Ack {
				return fmt.Errorf("rabbitmq: publish not acknowledged after timeout")
			}
		case <-time.After(2 * time.Second):
			// give up trying to read from the confirms channel
		}

		// return the original context error
		return ctx.Err()
	}

	return nil
}

// ----- Command bus -----

// CommandBus publishes matching commands over RabbitMQ. Immediate commands go
// through the matching topic exchange; delayed commands are parked in the
// fixed-TTL delay queues and dead-letter back into the command queue.
type CommandBus struct {
	Client *Client
}

// NewCommandBus constructs a CommandBus using the provided RabbitMQ client.
func NewCommandBus(client *Client) *CommandBus {
	return &CommandBus{Client: client}
}

// Publish delivers cmd to the command queue immediately.
func (bus *CommandBus) Publish(_ context.Context, cmd contracts.MatchingCommand) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode matching command: %w", err)
	}
	key := contracts.RouteMatchingCommandPrefix + cmd.Type.String()
	return bus.Client.PublishMessage(contracts.ExchangeMatchingTopic, key, body)
}

// PublishDriverTimeout arms the driver-response delay queue with cmd.
func (bus *CommandBus) PublishDriverTimeout(_ context.Context, cmd contracts.MatchingCommand) error {
	return bus.publishDelayed(contracts.QueueDelayDriverResponse, cmd)
}

// PublishBroadcastTimeout arms the broadcast delay queue with cmd.
func (bus *CommandBus) PublishBroadcastTimeout(_ context.Context, cmd contracts.MatchingCommand) error {
	return bus.publishDelayed(contracts.QueueDelayBroadcast, cmd)
}

func (bus *CommandBus) publishDelayed(queue string, cmd contracts.MatchingCommand) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode matching command: %w", err)
	}
	return bus.Client.PublishToQueue(queue, body)
}

// ----- Notifier -----

// Notifier publishes driver-offer and rider-status notifications to the
// notification topic exchange. Delivery to the device is a downstream concern.
type Notifier struct {
	Client *Client
}

// NewNotifier constructs a Notifier using the provided RabbitMQ client.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{Client: client}
}

// NotifyDriverOffer publishes a DRIVER_OFFER notification routed by driver id.
func (n *Notifier) NotifyDriverOffer(_ context.Context, offer contracts.DriverOfferNotification) error {
	body, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("encode driver offer: %w", err)
	}
	return n.Client.PublishMessage(contracts.ExchangeNotifyTopic, contracts.RouteNotifyDriverPrefix+offer.DriverID, body)
}

// NotifyRiderStatus publishes a RIDER_STATUS notification routed by rider id.
func (n *Notifier) NotifyRiderStatus(_ context.Context, status contracts.RiderStatusNotification) error {
	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode rider status: %w", err)
	}
	return n.Client.PublishMessage(contracts.ExchangeNotifyTopic, contracts.RouteNotifyRiderPrefix+status.RiderID, body)
}
