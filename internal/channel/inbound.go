package channel

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
)

var (
	ErrInboundQueueFull = errors.New("inbound queue full")
	ErrInboundStopped   = errors.New("inbound dispatcher stopped")
)

type inboundTask struct {
	ctx context.Context
	msg InboundMessage
}

// HandleInbound enqueues an inbound message for asynchronous processing by the
// worker pool. It never blocks: a full queue yields ErrInboundQueueFull and the
// caller decides whether to retry or let the platform redeliver.
func (m *Manager) HandleInbound(ctx context.Context, msg InboundMessage) error {
	queue, task, err := m.prepareInbound(ctx, msg)
	if err != nil {
		return err
	}
	select {
	case queue <- task:
		return nil
	default:
		m.logger.Warn("inbound queue full, rejecting message", slog.String("channel", msg.Channel.String()))
		return ErrInboundQueueFull
	}
}

func (m *Manager) prepareInbound(ctx context.Context, msg InboundMessage) (chan inboundTask, inboundTask, error) {
	if m.processor == nil {
		return nil, inboundTask{}, errors.New("inbound processor not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.startInboundWorkers()
	if m.inboundCtx.Err() != nil {
		return nil, inboundTask{}, ErrInboundStopped
	}
	task := inboundTask{
		ctx: context.WithoutCancel(ctx),
		msg: msg,
	}
	return m.inboundQueues[m.workerFor(msg.Sender.ExternalID)], task, nil
}

func (m *Manager) workerFor(senderID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(senderID))
	return int(h.Sum32() % uint32(len(m.inboundQueues)))
}

func (m *Manager) handleInbound(ctx context.Context, msg InboundMessage) error {
	sender := m.Sender()
	if sender == nil {
		return errors.New("no sender registered")
	}
	return m.processor.HandleInbound(ctx, msg, sender)
}

func (m *Manager) startInboundWorkers() {
	m.inboundOnce.Do(func() {
		for _, queue := range m.inboundQueues {
			m.inboundWG.Add(1)
			go m.runInboundWorker(queue)
		}
	})
}

func (m *Manager) runInboundWorker(queue <-chan inboundTask) {
	defer m.inboundWG.Done()
	for {
		select {
		case <-m.inboundCtx.Done():
			return
		case task := <-queue:
			if err := m.handleInbound(task.ctx, task.msg); err != nil {
				m.logger.Error("inbound processing failed", slog.String("channel", task.msg.Channel.String()), slog.Any("error", err))
			}
		}
	}
}
