package mqtt

import "sync"

// FakePublisher records published messages for test assertions. Safe for concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	statuses      []StatusMessage
	notifications []NotificationMessage
	closed        bool

	// PublishError, if set, is returned by both publish methods.
	PublishError error
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishStatus(msg StatusMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.statuses = append(f.statuses, msg)
	return nil
}

func (f *FakePublisher) PublishNotification(msg NotificationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.notifications = append(f.notifications, msg)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Statuses returns a copy of the published readings.
func (f *FakePublisher) Statuses() []StatusMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StatusMessage(nil), f.statuses...)
}

// Notifications returns a copy of the published notifications.
func (f *FakePublisher) Notifications() []NotificationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NotificationMessage(nil), f.notifications...)
}

func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
