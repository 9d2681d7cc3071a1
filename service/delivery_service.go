package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
	"github.com/layer-3/herald/realtime"
	"github.com/rs/zerolog"
)

// DefaultFlushDelay is the deliberate pause between a connection opening
// and its backlog flush. The transport is up before the client's
// application-level subscriber is attached; the delay papers over that
// window. It is a latency trade-off, not a correctness requirement.
const DefaultFlushDelay = 2 * time.Second

// ConnectionLister is the slice of the registry the delivery engine
// needs for live fan-out.
type ConnectionLister interface {
	ListFor(address string) []*realtime.Client
}

// DeliveryService reconciles "push when connected" with "persist when
// offline": durably append first, fan out to live connections, flush the
// backlog on connect.
type DeliveryService struct {
	log        zerolog.Logger
	store      ports.NotificationLog
	registry   ConnectionLister
	events     ports.EventPublisher
	flushDelay time.Duration
}

// NewDeliveryService creates a new delivery engine. flushDelay <= 0
// selects DefaultFlushDelay.
func NewDeliveryService(
	log zerolog.Logger,
	store ports.NotificationLog,
	registry ConnectionLister,
	events ports.EventPublisher,
	flushDelay time.Duration,
) *DeliveryService {
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	return &DeliveryService{
		log:        log,
		store:      store,
		registry:   registry,
		events:     events,
		flushDelay: flushDelay,
	}
}

// HandleConnect flushes the recipient's backlog to a newly opened
// connection, oldest first. A transport failure mid-flush aborts the
// remainder; unsent items stay in the log for the next connect.
func (s *DeliveryService) HandleConnect(ctx context.Context, client *realtime.Client) error {
	pending, err := s.store.PendingFor(ctx, client.UserAddress)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	// Let the client finish attaching its listeners before the burst.
	timer := time.NewTimer(s.flushDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-client.Done():
		return core.ErrConnectionClosed
	case <-timer.C:
	}

	for _, n := range pending {
		env, err := realtime.NotificationEnvelope(n)
		if err != nil {
			s.log.Error().Err(err).Str("notification_id", n.ID).Msg("failed to encode notification")
			continue
		}

		if !client.Enqueue(env) {
			return core.ErrConnectionClosed
		}

		claimed, err := s.store.MarkSent(ctx, n.ID)
		if err != nil {
			// Already pushed; the unsent flag means a possible duplicate
			// on the next connect, which at-least-once accepts.
			return err
		}
		if claimed {
			s.publishDelivered(ctx, n)
		}
	}

	return nil
}

// Ingest appends every notification in the producer's batch and fans
// each out to all live connections for its recipient. Append failures
// propagate to the producer as retryable errors; transport failures are
// non-fatal and leave the notification unsent.
func (s *DeliveryService) Ingest(ctx context.Context, batch []core.Incoming) error {
	for _, in := range batch {
		if !common.IsHexAddress(in.UserAddress) {
			return core.NewFault(core.FaultValidation, "invalid userAddress", nil)
		}
		// Producers send addresses in whatever casing they have. The log
		// and the registry are keyed by the checksummed form the gateway
		// registers under, so canonicalize before anything is stored.
		address := common.HexToAddress(in.UserAddress).Hex()

		// Durability first: a notification that fails to persist must
		// not be reported as delivered.
		n, err := s.store.Append(ctx, address, in.Payload)
		if err != nil {
			return err
		}

		conns := s.registry.ListFor(n.UserAddress)
		if len(conns) == 0 {
			continue
		}

		env, err := realtime.NotificationEnvelope(n)
		if err != nil {
			s.log.Error().Err(err).Str("notification_id", n.ID).Msg("failed to encode notification")
			continue
		}

		delivered := false
		for _, c := range conns {
			if c.Enqueue(env) {
				delivered = true
			}
		}
		if !delivered {
			continue
		}

		// Sent status is per-notification: mark exactly once no matter
		// how many connections received it.
		claimed, err := s.store.MarkSent(ctx, n.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("notification_id", n.ID).Msg("failed to mark notification sent")
			continue
		}
		if claimed {
			s.publishDelivered(ctx, n)
		}
	}

	return nil
}

func (s *DeliveryService) publishDelivered(ctx context.Context, n core.Notification) {
	if err := s.events.PublishDelivered(ctx, n.UserAddress, n.ID); err != nil {
		s.log.Warn().Err(err).Str("notification_id", n.ID).Msg("failed to publish delivered event")
	}
}
