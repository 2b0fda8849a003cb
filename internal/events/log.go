package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LogPublisher writes events to the structured log. It is used when no broker is
// configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.L()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishFinalized(_ context.Context, ev ProposalEvent) error {
	p.logger.Info("proposal finalized", eventFields(ev)...)
	return nil
}

func (p *LogPublisher) PublishTerminal(_ context.Context, ev ProposalEvent) error {
	p.logger.Info("proposal closed", eventFields(ev)...)
	return nil
}

func (p *LogPublisher) Close() {}

func eventFields(ev ProposalEvent) []zap.Field {
	return []zap.Field{
		zap.String("subject", ev.Subject()),
		zap.String("proposal_id", ev.ProposalID),
		zap.String("status", ev.Status),
		zap.String("class", ev.FinalClass),
		zap.String("amount", ev.FinalAmount.String()),
		zap.Int("approvals", len(ev.Approvals)),
		zap.Bool("overridden", ev.Overridden),
	}
}

// MemoryPublisher records events in order. Safe for concurrent use.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []ProposalEvent
}

func (p *MemoryPublisher) PublishFinalized(_ context.Context, ev ProposalEvent) error {
	p.record(ev)
	return nil
}

func (p *MemoryPublisher) PublishTerminal(_ context.Context, ev ProposalEvent) error {
	p.record(ev)
	return nil
}

func (p *MemoryPublisher) Close() {}

func (p *MemoryPublisher) record(ev ProposalEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []ProposalEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProposalEvent(nil), p.events...)
}
