package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chetanK28/PlanningPoker-Backend/internal/engine"
	"github.com/chetanK28/PlanningPoker-Backend/pkg/pipeline"
	"github.com/chetanK28/PlanningPoker-Backend/pkg/state"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrReservedEvent  = errors.New("event is reserved for the server")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrRouterStopped  = errors.New("router stopped")
)

// EventRouter is the single event-processing point. Transport goroutines
// enqueue work and Run executes it one event at a time, so room mutations
// never interleave.
type EventRouter struct {
	logger       *slog.Logger
	stateManager state.Manager
	pipelines    map[string]pipeline.Pipeline

	queue   chan job
	stopped chan struct{}
}

func NewEventRouter(logger *slog.Logger, stateManager state.Manager, pipelines map[string]pipeline.Pipeline, queueSize int) *EventRouter {
	return &EventRouter{
		logger:       logger.With(slog.String("component", "event_router")),
		stateManager: stateManager,
		pipelines:    pipelines,
		queue:        make(chan job, queueSize),
		stopped:      make(chan struct{}),
	}
}

// Run processes queued events until ctx is cancelled.
func (r *EventRouter) Run(ctx context.Context) {
	defer close(r.stopped)
	r.logger.Info("Event loop started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Event loop stopped")
			return
		case j := <-r.queue:
			_ = r.Process(j.ctx, j.connID, j.message)
		}
	}
}

// HandleMessage decodes one inbound frame and queues it. Frames are queued in
// the order a connection reads them, which keeps per-connection FIFO.
func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	clientMsg, err := decodeFrame(msg)
	if err != nil {
		r.logger.Warn("Dropping client frame", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}
	if clientMsg.Event == engine.EventDisconnect {
		r.logger.Warn("Dropping client frame",
			slog.String("connID", connID.String()),
			slog.Any("error", fmt.Errorf("'%s': %w", clientMsg.Event, ErrReservedEvent)),
		)
		return
	}
	if err := r.enqueue(ctx, job{ctx: ctx, connID: connID, message: clientMsg}); err != nil {
		r.logger.Debug("Event not queued", slog.String("connID", connID.String()), slog.String("event", clientMsg.Event), slog.Any("error", err))
	}
}

// HandleDisconnect queues the cleanup event for a closed connection.
func (r *EventRouter) HandleDisconnect(connID uuid.UUID, reason error) {
	r.logger.Debug("Queueing disconnect", slog.String("connID", connID.String()), slog.Any("reason", reason))
	msg := ClientMessage{Event: engine.EventDisconnect}
	if err := r.enqueue(context.Background(), job{ctx: context.Background(), connID: connID, message: msg}); err != nil {
		r.logger.Debug("Disconnect not queued", slog.String("connID", connID.String()), slog.Any("error", err))
	}
}

func (r *EventRouter) enqueue(ctx context.Context, j job) error {
	select {
	case r.queue <- j:
		return nil
	case <-r.stopped:
		return ErrRouterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process runs the pipeline of one event to completion. Any error means the
// event was dropped; nothing is reported back to the client.
func (r *EventRouter) Process(ctx context.Context, connID uuid.UUID, msg ClientMessage) error {
	logger := r.logger.With(slog.String("connID", connID.String()), slog.String("event", msg.Event))

	pipe, ok := r.pipelines[msg.Event]
	if !ok {
		err := fmt.Errorf("'%s': %w", msg.Event, ErrUnknownEvent)
		logger.Warn("Received unknown event")
		return err
	}

	conn, found := r.stateManager.GetConnection(connID)
	if !found {
		err := fmt.Errorf("'%s': %w", connID, state.ErrConnectionNotFound)
		logger.Debug("Event dropped", slog.Any("reason", err))
		return err
	}

	cargo := &pipeline.Cargo{
		Logger:       logger,
		Ctx:          ctx,
		Connection:   conn,
		StateManager: r.stateManager,
		EventName:    msg.Event,
		Payload:      msg.Payload,
	}
	logger.Debug("Executing event pipeline")
	if err := pipe.Execute(cargo); err != nil {
		logger.Debug("Event dropped", slog.Any("reason", err))
		return err
	}
	return nil
}

func decodeFrame(msg []byte) (ClientMessage, error) {
	if !gjson.ValidBytes(msg) {
		return ClientMessage{}, fmt.Errorf("%w: not JSON", ErrMalformedFrame)
	}
	event := gjson.GetBytes(msg, "event")
	if event.Type != gjson.String || event.String() == "" {
		return ClientMessage{}, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	clientMsg := ClientMessage{Event: event.String()}
	if payload := gjson.GetBytes(msg, "payload"); payload.Exists() {
		clientMsg.Payload = []byte(payload.Raw)
	}
	return clientMsg, nil
}
