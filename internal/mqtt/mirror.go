package mqtt

import (
	"context"
	"sync/atomic"
	"time"

	"monotub_dashboard/internal/logger"
	"monotub_dashboard/internal/service"
)

const mirrorQueueSize = 64

// Mirror forwards messages to a Publisher from its own goroutine so broker
// latency never stalls the dashboard. When the queue is full new messages are dropped.
type Mirror struct {
	pub     Publisher
	log     *logger.Logger
	queue   chan func(Publisher) error
	dropped atomic.Int64
}

func NewMirror(pub Publisher, log *logger.Logger) *Mirror {
	if log == nil {
		log = logger.Nop()
	}
	return &Mirror{
		pub:   pub,
		log:   log,
		queue: make(chan func(Publisher) error, mirrorQueueSize),
	}
}

// OfferStatus queues a reading without blocking.
func (m *Mirror) OfferStatus(msg StatusMessage) {
	m.offer(func(p Publisher) error { return p.PublishStatus(msg) })
}

// OfferNotification queues a notification without blocking.
func (m *Mirror) OfferNotification(msg NotificationMessage) {
	m.offer(func(p Publisher) error { return p.PublishNotification(msg) })
}

// Forward mirrors a dashboard update: successful polls as status messages,
// notifications as they are raised. Other kinds are ignored. Safe to use as
// a Subscribe callback.
func (m *Mirror) Forward(u service.Update) {
	switch {
	case u.Kind == service.KindStatus && u.Reading != nil:
		at := time.Now()
		if u.Status != nil && !u.Status.UpdatedAt.IsZero() {
			at = u.Status.UpdatedAt
		}
		m.OfferStatus(StatusMessage{At: at, Status: *u.Reading, HasSetpoint: u.SetpointKnown})
	case u.Kind == service.KindNotification && u.Notification != nil:
		m.OfferNotification(NotificationMessage{
			At:      u.Notification.At,
			Level:   u.Notification.Level,
			Message: u.Notification.Message,
		})
	}
}

// Dropped reports how many messages were discarded because the queue was full.
func (m *Mirror) Dropped() int64 {
	return m.dropped.Load()
}

func (m *Mirror) offer(send func(Publisher) error) {
	select {
	case m.queue <- send:
	default:
		if m.dropped.Add(1) == 1 {
			m.log.Warnw("mqtt_queue_full", "capacity", mirrorQueueSize)
		}
	}
}

// Run publishes queued messages until ctx is canceled, then closes the publisher.
func (m *Mirror) Run(ctx context.Context) {
	defer func() {
		if err := m.pub.Close(); err != nil {
			m.log.Warnw("mqtt_close_failed", "error", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case send := <-m.queue:
			if err := send(m.pub); err != nil {
				m.log.Warnw("mqtt_publish_failed", "error", err)
			}
		}
	}
}
