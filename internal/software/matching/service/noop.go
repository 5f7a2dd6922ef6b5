package service

import (
	"context"

	"campus-rides/internal/general/contracts"
	"campus-rides/internal/general/logger"
	"campus-rides/internal/ports"
)

// noopService is wired at startup when matching is disabled by configuration.
// Every operation logs and does nothing, so the rest of the process can run
// without the matching pipeline.
type noopService struct {
	logger *logger.Logger
}

// NewNoopMatchingService constructs the disabled-mode stub.
func NewNoopMatchingService(logger *logger.Logger) ports.MatchingService {
	return &noopService{logger: logger}
}

func (service *noopService) StartMatching(ctx context.Context, seed contracts.MatchSeed) error {
	service.logger.Warn(ctx, "matching_disabled", "Matching is disabled; seed ignored",
		map[string]any{"request_id": seed.RequestID})
	return nil
}

func (service *noopService) HandleCommand(ctx context.Context, cmd contracts.MatchingCommand) error {
	service.logger.Warn(ctx, "matching_disabled", "Matching is disabled; command ignored",
		map[string]any{"request_id": cmd.RequestID, "command_type": cmd.Type.String()})
	return nil
}

func (service *noopService) HandleDeadLetter(ctx context.Context, cmd contracts.MatchingCommand, attempts int64) error {
	service.logger.Warn(ctx, "matching_disabled", "Matching is disabled; dead letter ignored",
		map[string]any{"request_id": cmd.RequestID, "attempts": attempts})
	return nil
}

func (service *noopService) StartBackgroundConsumers(ctx context.Context) {
	service.logger.Warn(ctx, "matching_disabled", "Matching is disabled; consumers not started", nil)
}
