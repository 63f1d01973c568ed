package queue

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Queue is the outbound event bus contract. The coordinator publishes
// outcome events through it; consumers subscribe by topic.
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue backs tests and single-process mode. Handlers run on their
// own goroutine with bounded retries and exponential backoff.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	logger   *zap.Logger
}

func NewInMemoryQueue(logger *zap.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
		logger:   logger,
	}
}

type job struct {
	payload    any
	retryCount int
	maxRetries int
}

func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		go q.process(topic, handler, job{payload: payload, maxRetries: 3})
	}
	return nil
}

func (q *InMemoryQueue) process(topic string, handler func(payload any) error, j job) {
	for j.retryCount <= j.maxRetries {
		err := handler(j.payload)
		if err == nil {
			return
		}
		j.retryCount++
		q.logger.Warn("queue handler failed",
			zap.String("topic", topic),
			zap.Int("attempt", j.retryCount),
			zap.Int("max_retries", j.maxRetries),
			zap.Error(err))
		if j.retryCount > j.maxRetries {
			q.logger.Error("job permanently failed", zap.String("topic", topic))
			return
		}
		time.Sleep(time.Duration(j.retryCount*500) * time.Millisecond)
	}
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
