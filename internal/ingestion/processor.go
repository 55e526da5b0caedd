package ingestion

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/observability"
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Executor runs a parsed command. Implemented by *core.Engine.
type Executor interface {
	Execute(ctx context.Context, cmd core.Command) (*core.Output, error)
}

// Processor turns raw NATS commands into engine calls and settles each
// message:
//
//	malformed                    Term
//	committed, duplicate or
//	rejected by the engine       Ack
//	price unavailable, or
//	anything else                Nak (redelivered up to MaxDeliver)
type Processor struct {
	engine  Executor
	input   <-chan RawCommand
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewProcessor(engine Executor, input <-chan RawCommand, metrics *observability.Metrics, logger zerolog.Logger) *Processor {
	return &Processor{engine: engine, input: input, metrics: metrics, logger: logger}
}

// Run blocks until ctx is cancelled or input is closed.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-p.input:
			if !ok {
				return nil
			}
			p.Handle(ctx, raw)
		}
	}
}

// Handle processes one message and reports the result label it recorded.
func (p *Processor) Handle(ctx context.Context, raw RawCommand) string {
	cmd, err := ParseRawCommand(raw)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping malformed command")
		p.settle(raw.TermFunc)
		p.record("unknown", "malformed")
		return "malformed"
	}

	log := p.logger.With().
		Str("command_id", cmd.ID).
		Str("operation", cmd.Operation.String()).
		Str("sender", cmd.Sender.Hex()).
		Logger()

	out, err := p.engine.Execute(ctx, cmd)
	var result string
	switch {
	case err == nil:
		result = "applied"
		log.Debug().Int64("sequence", out.Sequence).Msg("command applied")
		p.settle(raw.AckFunc)
	case errors.Is(err, core.ErrDuplicateCommand):
		result = "duplicate"
		log.Debug().Msg("duplicate command")
		p.settle(raw.AckFunc)
	case errors.Is(err, dscerr.ErrPriceUnavailable):
		result = "unavailable"
		log.Warn().Err(err).Msg("price unavailable, redelivering")
		p.settle(raw.NakFunc)
	case dscerr.IsDomain(err):
		// Rejections are final.
		result = "rejected"
		log.Info().Err(err).Msg("command rejected")
		p.settle(raw.AckFunc)
	default:
		result = "error"
		log.Error().Err(err).Msg("command failed")
		p.settle(raw.NakFunc)
	}
	p.record(cmd.Operation.String(), result)
	return result
}

func (p *Processor) record(op, result string) {
	p.metrics.CommandsReceived.WithLabelValues(op, result).Inc()
}

func (p *Processor) settle(f func()) {
	if f != nil {
		f()
	}
}
