package rsmq

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. A single mutex serialises every
// operation, which makes Claim and Pop trivially indivisible. It is meant for
// tests and single-process use; nothing is persisted.
type MemoryStore struct {
	mu     sync.Mutex
	queues map[string]*memQueue
}

type memQueue struct {
	queue     Queue
	totalRecv int64
	totalSent int64
	messages  map[string]*memMessage
}

// Times are kept in ms to match RedisStore truncation.
type memMessage struct {
	id        string
	payload   []byte
	sentAt    int64
	visibleAt int64
	firstRecv int64
	rc        int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[string]*memQueue)}
}

func (s *MemoryStore) CreateQueue(_ context.Context, q *Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queues[q.Name]; ok {
		return ErrDuplicateQueue
	}
	stored := *q
	stored.Created = time.UnixMilli(q.Created.UnixMilli())
	stored.Modified = time.UnixMilli(q.Modified.UnixMilli())
	s.queues[q.Name] = &memQueue{queue: stored, messages: make(map[string]*memMessage)}
	return nil
}

func (s *MemoryStore) GetQueue(_ context.Context, name string) (*Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mq, ok := s.queues[name]
	if !ok {
		return nil, ErrQueueNotFound
	}
	q := mq.queue
	return &q, nil
}

func (s *MemoryStore) QueueAttributes(_ context.Context, name string, now time.Time) (*QueueAttributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mq, ok := s.queues[name]
	if !ok {
		return nil, ErrQueueNotFound
	}

	nowMs := now.UnixMilli()
	var hidden int64
	for _, m := range mq.messages {
		if m.visibleAt > nowMs {
			hidden++
		}
	}

	return &QueueAttributes{
		Queue:          mq.queue,
		TotalReceived:  mq.totalRecv,
		TotalSent:      mq.totalSent,
		Messages:       int64(len(mq.messages)),
		HiddenMessages: hidden,
	}, nil
}

func (s *MemoryStore) UpdateQueue(_ context.Context, name string, cfg QueueConfig, modified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mq, ok := s.queues[name]
	if !ok {
		return ErrQueueNotFound
	}
	mq.queue.QueueConfig = cfg
	mq.queue.Modified = time.UnixMilli(modified.UnixMilli())
	return nil
}

func (s *MemoryStore) DeleteQueue(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queues[name]; !ok {
		return ErrQueueNotFound
	}
	delete(s.queues, name)
	return nil
}

func (s *MemoryStore) ListQueues(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *MemoryStore) Insert(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mq, ok := s.queues[msg.Queue]
	if !ok {
		return ErrQueueNotFound
	}
	mq.messages[msg.ID] = &memMessage{
		id:        msg.ID,
		payload:   slices.Clone(msg.Payload),
		sentAt:    msg.SentAt.UnixMilli(),
		visibleAt: msg.VisibleAt.UnixMilli(),
	}
	mq.totalSent++
	return nil
}

func (s *MemoryStore) Claim(_ context.Context, queue string, now, visibleUntil time.Time) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mq, m := s.next(queue, now.UnixMilli())
	if m == nil {
		return nil, ErrNoMessageAvailable
	}

	m.visibleAt = visibleUntil.UnixMilli()
	m.rc++
	if m.firstRecv == 0 {
		m.firstRecv = now.UnixMilli()
	}
	mq.totalRecv++
	return m.snapshot(queue), nil
}

func (s *MemoryStore) Pop(_ context.Context, queue string, now time.Time) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mq, m := s.next(queue, now.UnixMilli())
	if m == nil {
		return nil, ErrNoMessageAvailable
	}

	m.visibleAt = now.UnixMilli()
	m.rc++
	if m.firstRecv == 0 {
		m.firstRecv = now.UnixMilli()
	}
	mq.totalRecv++
	delete(mq.messages, m.id)
	return m.snapshot(queue), nil
}

// next returns the ready message with the smallest (visibleAt, id).
func (s *MemoryStore) next(queue string, nowMs int64) (*memQueue, *memMessage) {
	mq, ok := s.queues[queue]
	if !ok {
		return nil, nil
	}

	var best *memMessage
	for _, m := range mq.messages {
		if m.visibleAt > nowMs {
			continue
		}
		if best == nil || m.visibleAt < best.visibleAt || (m.visibleAt == best.visibleAt && m.id < best.id) {
			best = m
		}
	}
	return mq, best
}

func (s *MemoryStore) Delete(_ context.Context, queue, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mq, ok := s.queues[queue]
	if !ok {
		return ErrMessageNotFound
	}
	if _, ok := mq.messages[id]; !ok {
		return ErrMessageNotFound
	}
	delete(mq.messages, id)
	return nil
}

func (s *MemoryStore) SetVisibleAt(_ context.Context, queue, id string, visibleAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mq, ok := s.queues[queue]
	if !ok {
		return ErrMessageNotFound
	}
	m, ok := mq.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	m.visibleAt = visibleAt.UnixMilli()
	return nil
}

func (m *memMessage) snapshot(queue string) *Message {
	return &Message{
		ID:              m.id,
		Queue:           queue,
		Payload:         slices.Clone(m.payload),
		SentAt:          msToTime(m.sentAt),
		VisibleAt:       msToTime(m.visibleAt),
		FirstReceivedAt: msToTime(m.firstRecv),
		ReceiveCount:    m.rc,
	}
}
