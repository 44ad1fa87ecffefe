package queue

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// TopicDispatch carries campaign ids whose pending recipients need a
// dispatch pass.
const TopicDispatch = "campaign_dispatch"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue is the in-process trigger bus used by the API server and
// tests. cmd/worker consumes the same topic over AMQP instead.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("Job failed (attempt %d/%d): %+v, error: %v\n", job.RetryCount, job.MaxRetries, job.Payload, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("Job permanently failed after %d attempts: %+v\n", job.MaxRetries, job.Payload)
			return // No requeue
		}

		// Backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// DispatchFunc runs one batch for the campaign and reports how many pending
// recipients remain.
type DispatchFunc func(campaignID int) (remaining int, err error)

// StartDispatchSubscriber wires a dispatch loop onto the queue: one job per
// campaign, batches run back to back until no pending recipients remain.
// A batch error bubbles up so the queue's retry/backoff kicks in; rows
// already processed are never re-sent, so retrying the job is safe.
func StartDispatchSubscriber(q Queue, dispatch DispatchFunc) {
	err := q.Subscribe(TopicDispatch, func(payload any) error {
		campaignID, ok := payload.(int)
		if !ok {
			log.Println("⚠️ invalid dispatch payload, expected campaign id")
			return nil // no retry
		}

		log.Println("📩 dispatching campaign:", campaignID)
		for {
			remaining, err := dispatch(campaignID)
			if err != nil {
				log.Println("⚠️ dispatch batch failed:", err)
				return err // triggers retry in queue
			}
			if remaining == 0 {
				log.Println("✅ campaign drained:", campaignID)
				return nil
			}
		}
	})
	if err != nil {
		log.Println("⚠️ failed to start dispatch subscriber:", err)
	}
}
