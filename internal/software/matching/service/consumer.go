package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-rides/internal/general/contracts"
	"campus-rides/internal/general/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandleCommand dispatches one inbound command to its handler. The switch is
// exhaustive over the known command types; an unknown type is an error so the
// delivery ends up in the dead-letter path instead of being silently dropped.
func (service *matchingService) HandleCommand(ctx context.Context, cmd contracts.MatchingCommand) error {
	switch cmd.Type {
	case contracts.CommandSendNextOffer:
		return service.HandleSendNextOffer(ctx, cmd)
	case contracts.CommandDriverTimeout:
		return service.HandleDriverTimeout(ctx, cmd)
	case contracts.CommandBroadcastTimeout:
		return service.HandleBroadcastTimeout(ctx, cmd)
	case contracts.CommandDriverResponse:
		return service.HandleDriverResponse(ctx, cmd)
	case contracts.CommandCancelMatching:
		return service.HandleCancelMatching(ctx, cmd)
	default:
		return fmt.Errorf("%w: %q", contracts.ErrInvalidCommandType, string(cmd.Type))
	}
}

// StartBackgroundConsumers starts the command, seed, and dead-letter
// consumers. Each runs in its own goroutine and restarts with a short pause
// when the underlying channel fails, until ctx is cancelled.
func (service *matchingService) StartBackgroundConsumers(ctx context.Context) {
	go service.consumeLoop(ctx, contracts.QueueMatchingCommands, "matching-commands", service.handleCommandDelivery)
	go service.consumeLoop(ctx, contracts.QueueMatchingSeeds, "matching-seeds", service.handleSeedDelivery)
	go service.consumeLoop(ctx, contracts.QueueDeadLetter, "matching-dead-letter", service.handleDeadLetterDelivery)

	service.logger.Info(ctx, "mq_consumers_started", "Matching service MQ consumers started",
		map[string]any{"queues": []string{contracts.QueueMatchingCommands, contracts.QueueMatchingSeeds, contracts.QueueDeadLetter}})
}

// consumeLoop keeps a consumer alive across channel failures.
func (service *matchingService) consumeLoop(ctx context.Context, queue, tag string, handler func(context.Context, amqp.Delivery) error) {
	for {
		err := service.rabbitmq.Consume(ctx, queue, tag, service.cfg.Services.Prefetch, handler)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			service.logger.Error(ctx, "mq_consume_failed", "Consumer stopped; restarting", err,
				map[string]any{"queue": queue})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// handleCommandDelivery decodes and dispatches one command delivery. A
// returned error rejects the delivery into the retry cycle; once the attempt
// budget is exhausted the raw delivery is forwarded to the dead-letter queue
// and acknowledged here.
func (service *matchingService) handleCommandDelivery(ctx context.Context, d amqp.Delivery) error {
	attempts := rabbitmq.DeliveryAttempts(d)

	if attempts > int64(service.cfg.Matching.MaxDeliveryAttempts) {
		service.logger.Warn(ctx, "command_attempts_exhausted", "Command exhausted its delivery attempts; routing to dead letter",
			map[string]any{"attempts": attempts, "size": len(d.Body)})
		if err := service.rabbitmq.ForwardToQueue(contracts.QueueDeadLetter, d.Body, d.Headers); err != nil {
			return err
		}
		return nil
	}

	var cmd contracts.MatchingCommand
	if err := json.Unmarshal(d.Body, &cmd); err != nil {
		service.logger.Error(ctx, "command_decode_failed", "Failed to decode matching command", err,
			map[string]any{"size": len(d.Body), "attempts": attempts})
		return fmt.Errorf("decode: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		service.logger.Error(ctx, "command_invalid", "Matching command failed validation", err,
			map[string]any{"command_type": string(cmd.Type), "attempts": attempts})
		return err
	}

	return service.HandleCommand(ctx, cmd)
}

// handleSeedDelivery decodes one seed from the upstream ranking producer and
// starts matching for it.
func (service *matchingService) handleSeedDelivery(ctx context.Context, d amqp.Delivery) error {
	var seed contracts.MatchSeed
	if err := json.Unmarshal(d.Body, &seed); err != nil {
		service.logger.Error(ctx, "seed_decode_failed", "Failed to decode match seed", err,
			map[string]any{"size": len(d.Body)})
		return fmt.Errorf("decode: %w", err)
	}
	if seed.RequestID == "" {
		service.logger.Error(ctx, "seed_invalid", "Match seed has no request id", nil,
			map[string]any{"size": len(d.Body)})
		return fmt.Errorf("match seed: request_id is required")
	}

	return service.StartMatching(ctx, seed)
}
