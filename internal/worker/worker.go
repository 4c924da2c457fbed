package worker

import (
	"context"
	"time"

	"reorder-service/internal/broker"
	"reorder-service/internal/service"
	"reorder-service/internal/util"

	"go.uber.org/zap"
)

// EventWorker consumes the Kafka event topic and dispatches into the in-process bus
type EventWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewEventWorker creates a new event worker
func NewEventWorker(consumer *broker.Consumer, eventHandler *broker.EventHandler) *EventWorker {
	return &EventWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes until ctx is cancelled
func (w *EventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting event worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *EventWorker) Stop() error {
	w.logger.Info("Stopping event worker")
	return w.consumer.Close()
}

// Sweeper periodically scans for low stock and rechecks plans waiting for materials.
// It catches changes that arrived while no event was delivered.
type Sweeper struct {
	reorders     *service.ReorderService
	orchestrator *service.ProductionOrchestrator
	interval     time.Duration
	logger       *zap.Logger
}

// NewSweeper creates a new sweeper
func NewSweeper(
	reorders *service.ReorderService,
	orchestrator *service.ProductionOrchestrator,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		reorders:     reorders,
		orchestrator: orchestrator,
		interval:     interval,
		logger:       util.GetLogger(),
	}
}

// Start runs a sweep every interval until ctx is cancelled
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting sweeper", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper context cancelled, stopping")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one low-stock scan and one recheck of waiting plans
func (s *Sweeper) Sweep(ctx context.Context) {
	raised, err := s.reorders.ScanLowStock(ctx)
	if err != nil {
		s.logger.Error("Low stock scan failed", zap.Error(err))
	} else if len(raised) > 0 {
		s.logger.Info("Low stock scan raised reorder requests", zap.Int("count", len(raised)))
	}

	if _, err := s.orchestrator.RecheckAwaitingMaterialsPlans(ctx); err != nil {
		s.logger.Error("Awaiting plans recheck failed", zap.Error(err))
	}
}
