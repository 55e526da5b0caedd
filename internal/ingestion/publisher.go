package ingestion

import (
	"DSCEngine/internal/contract"
	"DSCEngine/internal/core"
	"DSCEngine/internal/event"
	"DSCEngine/internal/observability"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// StreamPublisher is the part of jetstream.JetStream the publisher uses.
type StreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// OutboundPublisher publishes committed domain events to NATS. Subjects
// follow dsc.engine.events.{event}. Each message carries a Nats-Msg-Id of
// sequence-index so a republish after restart is deduplicated by the
// stream.
type OutboundPublisher struct {
	js        StreamPublisher
	inputChan <-chan core.Output
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewOutboundPublisher(js StreamPublisher, inputChan <-chan core.Output, metrics *observability.Metrics, logger zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled or the channel is closed.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if err := op.Publish(ctx, out); err != nil {
				// Non-fatal: consumers can read the operation log directly.
				op.metrics.PublishErrors.Inc()
				op.logger.Warn().Err(err).Int64("sequence", out.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

// Publish sends every event of out.
func (op *OutboundPublisher) Publish(ctx context.Context, out core.Output) error {
	envelopes, err := NewEnvelopes(out)
	if err != nil {
		return err
	}
	for _, env := range envelopes {
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}
		msgID := fmt.Sprintf("%d-%d", env.Sequence, env.Index)
		if _, err := op.js.Publish(ctx, EventSubject(env.Event), data, jetstream.WithMsgID(msgID)); err != nil {
			return fmt.Errorf("publish %s: %w", msgID, err)
		}
		op.metrics.EventsPublished.WithLabelValues(env.Event).Inc()
	}
	return nil
}

// EventSubject maps an event name to its subject.
func EventSubject(eventName string) string {
	et, err := event.ParseEventType(eventName)
	if err != nil {
		return EventSubjectPrefix + ".unknown"
	}
	return EventSubjectPrefix + "." + et.Subject()
}

// NewEnvelopes wraps each event of out with its log encoding.
func NewEnvelopes(out core.Output) ([]event.Envelope, error) {
	envelopes := make([]event.Envelope, 0, len(out.Events))
	for i, ev := range out.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", ev.EventType(), err)
		}
		l, err := contract.EncodeLog(ev)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, event.Envelope{
			Sequence:  out.Sequence,
			Index:     i,
			CommandID: out.CommandID,
			Operation: out.Operation.String(),
			Event:     ev.EventType().String(),
			Timestamp: out.Timestamp,
			Payload:   payload,
			Topics:    l.Topics,
			Data:      hexutil.Encode(l.Data),
			StateHash: out.StateHash,
		})
	}
	return envelopes, nil
}
