package mq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stywzn/qdashboard/pkg/resilience"
)

// Handler processes one message body. A transient error (see
// resilience.IsTransient) requeues the delivery; any other error drops it.
type Handler func(ctx context.Context, body []byte) error

// Serve fans deliveries out to a fixed pool of workers until msgs closes or
// ctx is cancelled, then waits for in-flight handlers. Deliveries still
// buffered after cancellation are requeued unprocessed.
func Serve(ctx context.Context, workers int, msgs <-chan amqp.Delivery, handle Handler) {
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan amqp.Delivery, workers*2)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				if ctx.Err() != nil {
					_ = d.Nack(false, true)
					continue
				}
				settle(ctx, d, handle(ctx, d.Body))
			}
		}()
	}

	// 主循环负责从 RabbitMQ 取货, 分发给 jobs
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case d, ok := <-msgs:
			if !ok {
				break loop
			}
			jobs <- d
		}
	}
	close(jobs)
	wg.Wait()
}

func settle(ctx context.Context, d amqp.Delivery, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case ctx.Err() != nil || resilience.IsTransient(err):
		_ = d.Nack(false, true)
	default:
		_ = d.Nack(false, false)
	}
}
